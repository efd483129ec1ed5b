package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctx/contextmgr/internal/hashing"
	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/store"
)

func TestAttach_WriteTriggersReindex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "tr.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ix := indexer.New(st, nil)
	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	src := model.NewFilesystemSource("FS1", path)

	_, err = ix.IndexFile(ctx, src, "v1")
	require.NoError(t, err)

	sup := NewSupervisor(ix, nil)
	t.Cleanup(sup.Close)
	require.NoError(t, sup.Attach(path, src))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	assert.Eventually(t, func() bool {
		doc, err := st.Get(ctx, mustID(t, src))
		if err != nil || doc == nil {
			return false
		}
		return doc["content"] == "v2"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAttach_DeleteTriggersTombstone(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "tr2.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ix := indexer.New(st, nil)
	path := filepath.Join(dir, "deleteme.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	src := model.NewFilesystemSource("FS1", path)

	_, err = ix.IndexFile(ctx, src, "v1")
	require.NoError(t, err)

	sup := NewSupervisor(ix, nil)
	t.Cleanup(sup.Close)
	require.NoError(t, sup.Attach(path, src))

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		doc, err := st.Get(ctx, mustID(t, src))
		if err != nil || doc == nil {
			return false
		}
		return doc["content"] == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDetach_ThenReattachSucceeds(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "tr3.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ix := indexer.New(st, nil)
	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	src := model.NewFilesystemSource("FS1", path)

	sup := NewSupervisor(ix, nil)
	t.Cleanup(sup.Close)
	require.NoError(t, sup.Attach(path, src))
	sup.Detach(path)

	// Re-attach should work cleanly after detach (no leaked map entry).
	require.NoError(t, sup.Attach(path, src))
}

func mustID(t *testing.T, src model.Source) string {
	t.Helper()
	id, err := hashing.IdentityHash(string(model.TypeFile), src.Encode(), "")
	require.NoError(t, err)
	return id
}
