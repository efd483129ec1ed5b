package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"
)

// SQLiteStore implements Store over a pure-Go SQLite database (no cgo), one
// row per document *version* rather than per document — the table itself
// is the bitemporal history. It commits each Put synchronously inside the
// call, so AwaitTx on this implementation never blocks; the two-call
// shape is kept because the Store interface also has to serve substrates
// that commit asynchronously.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
	logger  *zap.Logger
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc.org/sqlite serializes access per-connection; a single open
	// connection avoids SQLITE_BUSY races between concurrent Put calls
	// while still letting the store accept concurrent callers (they
	// queue on the connection, matching the "no compare-and-swap,
	// duplicate harmless writes preferred" design in SPEC_FULL.md §4.4).
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT NOT NULL,
		tx_handle  TEXT NOT NULL,
		tx_time    TEXT NOT NULL,
		body       TEXT NOT NULL,
		PRIMARY KEY (id, tx_time, tx_handle)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_id_txtime ON documents(id, tx_time DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// txTimeLayout writes tx_time with a fixed nine-digit fraction so that the
// text ordering SQLite applies to the column matches time ordering.
const txTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLiteStore) newHandle() TxHandle {
	return TxHandle(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

// Put inserts a new version row for doc[IDField]. The transaction time is
// assigned here, at commit, not by the caller.
func (s *SQLiteStore) Put(ctx context.Context, doc Doc) (TxHandle, error) {
	rawID, ok := doc[IDField]
	if !ok {
		return "", ErrMissingID
	}
	id, ok := rawID.(string)
	if !ok || id == "" {
		return "", ErrMissingID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("store: marshal document %s: %w", id, err)
	}

	handle := s.newHandle()
	txTime := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, tx_handle, tx_time, body) VALUES (?, ?, ?, ?)`,
		id, string(handle), txTime.Format(txTimeLayout), string(body))
	if err != nil {
		return "", fmt.Errorf("store: put %s: %w", id, err)
	}

	s.logger.Debug("document version written",
		zap.String("id", id), zap.String("txHandle", string(handle)))
	return handle, nil
}

// AwaitTx is a no-op on this implementation: Put already commits
// synchronously. Kept as a real call (not skipped) so callers exercise the
// same code path they would against an asynchronous store.
func (s *SQLiteStore) AwaitTx(ctx context.Context, handle TxHandle) error {
	if handle == "" {
		return fmt.Errorf("store: await empty tx handle")
	}
	return ctx.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Doc, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE id = ? ORDER BY tx_time DESC, tx_handle DESC LIMIT 1`, id)
	return scanDoc(row)
}

func (s *SQLiteStore) GetAsOf(ctx context.Context, id string, at time.Time) (Doc, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE id = ? AND tx_time <= ? ORDER BY tx_time DESC, tx_handle DESC LIMIT 1`,
		id, at.UTC().Format(txTimeLayout))
	return scanDoc(row)
}

func (s *SQLiteStore) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tx_handle, tx_time FROM documents WHERE id = ? ORDER BY tx_time ASC, tx_handle ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", id, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var handle, txTimeStr string
		if err := rows.Scan(&handle, &txTimeStr); err != nil {
			return nil, fmt.Errorf("store: scan history %s: %w", id, err)
		}
		t, err := time.Parse(time.RFC3339Nano, txTimeStr)
		if err != nil {
			return nil, fmt.Errorf("store: parse history timestamp %s: %w", id, err)
		}
		entries = append(entries, HistoryEntry{ValidFrom: t, Handle: TxHandle(handle)})
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Doc, error) {
	var docs []Doc
	for _, id := range q.IDs {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("store: query %s: %w", id, err)
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDoc(row rowScanner) (Doc, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scan document: %w", err)
	}
	var doc Doc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal document: %w", err)
	}
	return doc, nil
}
