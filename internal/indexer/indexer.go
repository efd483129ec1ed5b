// Package indexer is the single funnel for all sourced-object mutation
// (§4.4): indexFile, discoverFile, and indexFileDeletion all derive the
// same identity hash from a source binding and route through the same
// get-compare-put protocol, so a file always has exactly one id no matter
// which entry point last touched it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/hashing"
	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/store"
)

// Outcome is the result classification every entry point returns, matching
// the four-case table in §4.4.
type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
)

// Result reports what an indexer call did and the resulting object.
type Result struct {
	ID      string
	Outcome Outcome
	Object  *model.Object
}

// ErrObjectNotFound is returned by IndexFileDeletion when the object does
// not already exist — a deletion tombstone requires a prior version to
// tombstone.
var ErrObjectNotFound = errors.New("indexer: object not found")

// Indexer wraps a document store, giving it the read-hash-compare-write
// protocol every sourced-object mutation shares.
type Indexer struct {
	store  store.Store
	logger *zap.Logger
}

// New constructs an Indexer over st. logger may be nil.
func New(st store.Store, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{store: st, logger: logger}
}

// IndexFile performs a full index: the caller has read content and wants
// it durably recorded under source's identity.
func (ix *Indexer) IndexFile(ctx context.Context, src model.Source, content string) (*Result, error) {
	id, err := fileIdentity(src)
	if err != nil {
		return nil, err
	}
	sh, _ := hashing.SourceHash([]byte(content))

	existingDoc, err := ix.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexer: get %s: %w", id, err)
	}

	contentVal := content
	fileType := deriveFileType(src)

	if existingDoc == nil {
		obj := newFileObject(id, src)
		obj.Content = &contentVal
		obj.SourceHash = &sh
		obj.FileType = fileType
		obj.CharCount = len(content)
		if err := obj.ComputeContentHash(); err != nil {
			return nil, fmt.Errorf("indexer: content hash: %w", err)
		}
		if err := ix.put(ctx, obj); err != nil {
			return nil, err
		}
		ix.logger.Debug("file indexed", zap.String("id", id), zap.String("outcome", string(Created)))
		return &Result{ID: id, Outcome: Created, Object: obj}, nil
	}

	existing, err := model.ObjectFromDoc(store.IDField, existingDoc)
	if err != nil {
		return nil, fmt.Errorf("indexer: decode %s: %w", id, err)
	}

	if !existing.IsStub() && existing.SourceHash != nil && *existing.SourceHash == sh {
		return &Result{ID: id, Outcome: Unchanged, Object: existing}, nil
	}

	existing.Content = &contentVal
	existing.SourceHash = &sh
	existing.FileType = fileType
	existing.CharCount = len(content)
	if err := existing.ComputeContentHash(); err != nil {
		return nil, fmt.Errorf("indexer: content hash: %w", err)
	}
	if err := ix.put(ctx, existing); err != nil {
		return nil, err
	}
	ix.logger.Debug("file indexed", zap.String("id", id), zap.String("outcome", string(Updated)))
	return &Result{ID: id, Outcome: Updated, Object: existing}, nil
}

// DiscoverFile writes a metadata stub for src if it is not already known,
// letting an agent learn that a path exists without paying the cost of
// reading it.
func (ix *Indexer) DiscoverFile(ctx context.Context, src model.Source) (*Result, error) {
	id, err := fileIdentity(src)
	if err != nil {
		return nil, err
	}

	existingDoc, err := ix.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexer: get %s: %w", id, err)
	}
	if existingDoc != nil {
		existing, err := model.ObjectFromDoc(store.IDField, existingDoc)
		if err != nil {
			return nil, fmt.Errorf("indexer: decode %s: %w", id, err)
		}
		return &Result{ID: id, Outcome: Unchanged, Object: existing}, nil
	}

	obj := newFileObject(id, src)
	obj.FileType = deriveFileType(src)
	obj.CharCount = 0
	if err := obj.ComputeContentHash(); err != nil {
		return nil, fmt.Errorf("indexer: content hash: %w", err)
	}
	if err := ix.put(ctx, obj); err != nil {
		return nil, err
	}
	ix.logger.Debug("file discovered", zap.String("id", id))
	return &Result{ID: id, Outcome: Created, Object: obj}, nil
}

// IndexFileDeletion writes a tombstone version for src: content and
// source_hash go null, the envelope and identity are untouched, and
// history is preserved. A later IndexFile call on the same source revives
// the object under the same id.
func (ix *Indexer) IndexFileDeletion(ctx context.Context, src model.Source) (*Result, error) {
	id, err := fileIdentity(src)
	if err != nil {
		return nil, err
	}

	existingDoc, err := ix.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("indexer: get %s: %w", id, err)
	}
	if existingDoc == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	existing, err := model.ObjectFromDoc(store.IDField, existingDoc)
	if err != nil {
		return nil, fmt.Errorf("indexer: decode %s: %w", id, err)
	}

	existing.Content = nil
	existing.SourceHash = nil
	existing.CharCount = 0
	if err := existing.ComputeContentHash(); err != nil {
		return nil, fmt.Errorf("indexer: content hash: %w", err)
	}
	if err := ix.put(ctx, existing); err != nil {
		return nil, err
	}
	ix.logger.Debug("file deletion indexed", zap.String("id", id))
	return &Result{ID: id, Outcome: Updated, Object: existing}, nil
}

func (ix *Indexer) put(ctx context.Context, obj *model.Object) error {
	doc := obj.ToDoc(store.IDField)
	handle, err := ix.store.Put(ctx, doc)
	if err != nil {
		return fmt.Errorf("indexer: put %s: %w", obj.ID, err)
	}
	if err := ix.store.AwaitTx(ctx, handle); err != nil {
		return fmt.Errorf("indexer: await tx for %s: %w", obj.ID, err)
	}
	return nil
}

func fileIdentity(src model.Source) (string, error) {
	id, err := hashing.IdentityHash(string(model.TypeFile), src.Encode(), "")
	if err != nil {
		return "", fmt.Errorf("indexer: identity hash: %w", err)
	}
	return id, nil
}

func newFileObject(id string, src model.Source) *model.Object {
	s := src
	return &model.Object{
		Envelope: model.Envelope{
			ID:           id,
			Type:         model.TypeFile,
			Source:       &s,
			IdentityHash: id,
		},
	}
}

// deriveFileType extracts a lowercase extension (without the leading dot)
// from src's path. A path with no extension yields "".
func deriveFileType(src model.Source) string {
	if src.Filesystem == nil {
		return ""
	}
	ext := filepath.Ext(src.Filesystem.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
