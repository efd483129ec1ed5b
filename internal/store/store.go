// Package store defines the document-store abstraction the core consumes
// (§4.3: put/awaitTx/get/getAsOf/history/query) and a SQLite-backed
// bitemporal implementation of it. Callers convert model.Object values to
// and from documents with model's ToDoc and ObjectFromDoc.
//
// The core never assumes schema enforcement from the underlying store —
// Store works in plain map[string]interface{} documents keyed by an
// "xt/id" field, exactly as an external bitemporal document store would be
// consumed over the wire.
package store

import (
	"context"
	"fmt"
	"time"
)

// IDField is the document key every Store implementation keys puts and
// reads by, matching the wire format in SPEC_FULL.md §6.
const IDField = "xt/id"

// Doc is a single flat document. Callers are responsible for putting the
// id under IDField before calling Put.
type Doc = map[string]interface{}

// TxHandle is an opaque handle returned by Put, passed to AwaitTx to block
// until that specific write is durably indexed.
type TxHandle string

// HistoryEntry is one entry in an id's version history.
type HistoryEntry struct {
	ValidFrom time.Time
	Handle    TxHandle
}

// Query is a declarative read over document fields. The only shape the
// core currently needs is "fetch the latest version of each of these ids",
// used by session resume to batch-load a session_index.
type Query struct {
	IDs []string
}

// Store is the document-store contract the core depends on. Any substrate
// satisfying it — this package's SQLite adapter, or a real bitemporal
// document database — is a conforming implementation.
type Store interface {
	// Put submits a document write keyed by doc[IDField]. Returns a
	// transaction handle; the write may not yet be durably indexed.
	Put(ctx context.Context, doc Doc) (TxHandle, error)

	// AwaitTx blocks until handle's write is durably indexed, giving the
	// caller read-after-write consistency for Get/GetAsOf/Query calls
	// that follow.
	AwaitTx(ctx context.Context, handle TxHandle) error

	// Get returns the latest version of id as of now, or (nil, nil) if
	// id does not exist — NotFound is a null read, not an error.
	Get(ctx context.Context, id string) (Doc, error)

	// GetAsOf returns the version of id valid at the given transaction
	// time, or (nil, nil) if none existed yet at that time.
	GetAsOf(ctx context.Context, id string, at time.Time) (Doc, error)

	// History returns every version of id in ascending transaction-time
	// order. Returns an empty slice (not an error) if id does not exist.
	History(ctx context.Context, id string) ([]HistoryEntry, error)

	// Query runs a declarative read. Unknown ids are silently omitted
	// from the result, matching Get's NotFound-as-null-read policy.
	Query(ctx context.Context, q Query) ([]Doc, error)

	// Close releases the store's underlying resources.
	Close() error
}

// ErrMissingID is returned by Put when the document has no IDField value.
var ErrMissingID = fmt.Errorf("store: document missing %q field", IDField)
