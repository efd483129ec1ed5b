package store

import (
	"context"
	"os"
)

// Stats holds database statistics, reported by the CLI's "stats" command.
type Stats struct {
	DBPath        string           `json:"db_path"`
	DBSizeBytes   int64            `json:"db_size_bytes"`
	TotalVersions int              `json:"total_versions"`
	DistinctIDs   int              `json:"distinct_ids"`
	ByType        []TypeStats      `json:"by_type"`
}

// TypeStats holds per-object-type counts, keyed by the "type" field of the
// latest version of each document.
type TypeStats struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Stats returns database statistics: version counts, distinct-id counts,
// and a breakdown of the latest version of every id by object type.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.TotalVersions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM documents`).Scan(&st.DistinctIDs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT json_extract(body, '$.type') AS obj_type, COUNT(*) AS cnt
		FROM documents d
		WHERE tx_time = (SELECT MAX(tx_time) FROM documents WHERE id = d.id)
		GROUP BY obj_type
		ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ts TypeStats
		if err := rows.Scan(&ts.Type, &ts.Count); err != nil {
			return st, err
		}
		st.ByType = append(st.ByType, ts)
	}

	return st, rows.Err()
}
