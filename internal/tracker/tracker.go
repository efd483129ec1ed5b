// Package tracker implements the tracker supervisor (§4.6): a map from
// canonical path to an attached fsnotify watcher, feeding file-change
// events back into the indexer so a session's files stay current without
// the agent re-reading them.
package tracker

import (
	"context"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/model"
)

// entry is one attached watcher.
type entry struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	source  model.Source
}

// Supervisor owns every watcher attached for sourced objects across all
// sessions it serves. Watcher failures are logged, never retried — the
// next explicit read by the agent re-observes the current state.
type Supervisor struct {
	indexer *indexer.Indexer
	logger  *zap.Logger

	mu       sync.Mutex
	watchers map[string]*entry
	rootCtx  context.Context
	rootStop context.CancelFunc
}

// NewSupervisor constructs a Supervisor. logger may be nil.
func NewSupervisor(ix *indexer.Indexer, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		indexer:  ix,
		logger:   logger,
		watchers: make(map[string]*entry),
		rootCtx:  ctx,
		rootStop: cancel,
	}
}

// Attach subscribes canonicalPath for change notifications, dispatching
// writes into indexer.IndexFile and deletions into
// indexer.IndexFileDeletion. Re-attaching an already-watched path is a
// no-op. Implements session.WatchAttacher.
func (s *Supervisor) Attach(canonicalPath string, src model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchers[canonicalPath]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(canonicalPath); err != nil {
		watcher.Close()
		return err
	}

	ctx, cancel := context.WithCancel(s.rootCtx)
	e := &entry{watcher: watcher, cancel: cancel, source: src}
	s.watchers[canonicalPath] = e

	go s.run(ctx, canonicalPath, e)
	s.logger.Debug("watcher attached", zap.String("path", canonicalPath))
	return nil
}

// Detach tears down the watcher for canonicalPath, if any. Session end
// calls this explicitly; the supervisor never times one out on its own.
func (s *Supervisor) Detach(canonicalPath string) {
	s.mu.Lock()
	e, exists := s.watchers[canonicalPath]
	if exists {
		delete(s.watchers, canonicalPath)
	}
	s.mu.Unlock()

	if exists {
		e.cancel()
		e.watcher.Close()
	}
}

// Close tears down every attached watcher.
func (s *Supervisor) Close() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.watchers))
	for p := range s.watchers {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	for _, p := range paths {
		s.Detach(p)
	}
	s.rootStop()
}

func (s *Supervisor) run(ctx context.Context, canonicalPath string, e *entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, canonicalPath, e, event)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.String("path", canonicalPath), zap.Error(err))
		}
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, canonicalPath string, e *entry, event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		content, err := os.ReadFile(canonicalPath)
		if err != nil {
			s.logger.Warn("watcher read failed", zap.String("path", canonicalPath), zap.Error(err))
			return
		}
		if _, err := s.indexer.IndexFile(ctx, e.source, string(content)); err != nil {
			s.logger.Warn("watcher index failed", zap.String("path", canonicalPath), zap.Error(err))
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if _, err := s.indexer.IndexFileDeletion(ctx, e.source); err != nil {
			s.logger.Warn("watcher deletion index failed", zap.String("path", canonicalPath), zap.Error(err))
		}
	}
}
