package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/fsresolve"
	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/store"
)

// ResumeNote records one reconciliation outcome from Resume, surfaced to
// the caller for logging; it is informational, not an error.
type ResumeNote struct {
	ObjectID string
	Action   string // "unchanged" | "updated" | "deleted" | "orphaned" | "watch-attached" | "watch-failed"
	Detail   string
}

// Resume reconstructs a Session from its latest persisted document (§4.5
// Resume): batch-fetches every session_index member, re-runs the indexer
// against every sourced object whose file is currently reachable, and
// re-attaches watchers for every watchable mounted source.
func Resume(ctx context.Context, st store.Store, ix *indexer.Indexer, resolver *fsresolve.Resolver, logger *zap.Logger, sessionID string, reader FileReader, attacher WatchAttacher, defaults Defaults) (*Session, []ResumeNote, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = OSFileReader{}
	}

	docID := model.SessionDocID(sessionID)
	doc, err := st.Get(ctx, docID)
	if err != nil {
		return nil, nil, fmt.Errorf("session: get %s: %w", docID, err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("session: no session document for %s", sessionID)
	}
	sessionObj, err := model.ObjectFromDoc(store.IDField, doc)
	if err != nil {
		return nil, nil, fmt.Errorf("session: decode %s: %w", docID, err)
	}

	s := &Session{
		id: sessionID, store: st, indexer: ix, resolver: resolver, logger: logger, defaults: defaults,
		chatRef:         sessionObj.ChatRef,
		systemPromptRef: sessionObj.SystemPromptRef,
		sessionIndex:    sessionObj.SessionIndex,
		metadataPool:    sessionObj.MetadataPool,
		activeSet:       sessionObj.ActiveSet,
		pinnedSet:       sessionObj.PinnedSet,
		objectTypes:     make(map[string]model.ObjectType),
	}

	docs, err := st.Query(ctx, store.Query{IDs: s.sessionIndex})
	if err != nil {
		return nil, nil, fmt.Errorf("session: batch-fetch session_index: %w", err)
	}

	var notes []ResumeNote
	for _, d := range docs {
		obj, err := model.ObjectFromDoc(store.IDField, d)
		if err != nil {
			logger.Warn("session resume: skipping undecodable object", zap.Error(err))
			continue
		}
		s.objectTypes[obj.ID] = obj.Type

		if obj.Type != model.TypeFile || obj.Source == nil || obj.Source.Filesystem == nil {
			continue
		}
		note := reconcileSourcedObject(ctx, ix, reader, obj)
		notes = append(notes, note)

		if resolver != nil && attacher != nil {
			fsSrc := obj.Source.Filesystem
			if resolver.IsCanonicalWatchable(fsSrc.Path, fsSrc.FilesystemID) {
				if err := attacher.Attach(fsSrc.Path, *obj.Source); err != nil {
					notes = append(notes, ResumeNote{ObjectID: obj.ID, Action: "watch-failed", Detail: err.Error()})
				} else {
					notes = append(notes, ResumeNote{ObjectID: obj.ID, Action: "watch-attached"})
				}
			}
		}
	}

	return s, notes, nil
}

func reconcileSourcedObject(ctx context.Context, ix *indexer.Indexer, reader FileReader, obj *model.Object) ResumeNote {
	fsSrc := obj.Source.Filesystem
	content, exists, err := reader.ReadFile(fsSrc.Path)
	if err != nil {
		return ResumeNote{ObjectID: obj.ID, Action: "orphaned", Detail: err.Error()}
	}
	if !exists {
		if obj.Content == nil {
			return ResumeNote{ObjectID: obj.ID, Action: "unchanged"}
		}
		if _, err := ix.IndexFileDeletion(ctx, *obj.Source); err != nil {
			return ResumeNote{ObjectID: obj.ID, Action: "orphaned", Detail: err.Error()}
		}
		return ResumeNote{ObjectID: obj.ID, Action: "deleted"}
	}

	res, err := ix.IndexFile(ctx, *obj.Source, string(content))
	if err != nil {
		return ResumeNote{ObjectID: obj.ID, Action: "orphaned", Detail: err.Error()}
	}
	return ResumeNote{ObjectID: obj.ID, Action: string(res.Outcome)}
}
