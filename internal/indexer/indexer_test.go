package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/store"
)

func newTestIndexer(t *testing.T) (*Indexer, store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "idx.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, nil), st
}

func testSource() model.Source {
	return model.NewFilesystemSource("FS1", "/home/u/a.ts")
}

func TestIndexFile_TwoClientsSameContent(t *testing.T) {
	// §8 scenario 1: two clients index the same unread file one after the
	// other; the first creates, the second observes no change, and both
	// agree on the id.
	ctx := context.Background()
	ix, st := newTestIndexer(t)
	src := testSource()

	r1, err := ix.IndexFile(ctx, src, "console.log(1);")
	require.NoError(t, err)
	assert.Equal(t, Created, r1.Outcome)

	r2, err := ix.IndexFile(ctx, src, "console.log(1);")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, r2.Outcome)
	assert.Equal(t, r1.ID, r2.ID)

	hist, err := st.History(ctx, r1.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestDiscoverThenReadThenModify(t *testing.T) {
	// §8 scenario 2.
	ctx := context.Background()
	ix, st := newTestIndexer(t)
	src := model.NewFilesystemSource("FS1", "/p/x.md")

	d, err := ix.DiscoverFile(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, Created, d.Outcome)
	assert.Nil(t, d.Object.Content)

	r1, err := ix.IndexFile(ctx, src, "hello")
	require.NoError(t, err)
	assert.Equal(t, Updated, r1.Outcome)
	assert.Equal(t, d.ID, r1.ID)
	require.NotNil(t, r1.Object.Content)
	assert.Equal(t, "hello", *r1.Object.Content)

	r2, err := ix.IndexFile(ctx, src, "hello world")
	require.NoError(t, err)
	assert.Equal(t, Updated, r2.Outcome)
	assert.Equal(t, d.ID, r2.ID)
	assert.Equal(t, "hello world", *r2.Object.Content)

	hist, err := st.History(ctx, d.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(hist), 3)
}

func TestIndexThenDeleteThenReindex(t *testing.T) {
	// §8 round-trip law: id constant across index/delete/reindex; latest
	// content equals the final write; history length >= 3.
	ctx := context.Background()
	ix, st := newTestIndexer(t)
	src := testSource()

	r1, err := ix.IndexFile(ctx, src, "v1")
	require.NoError(t, err)

	del, err := ix.IndexFileDeletion(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, del.ID)
	assert.Nil(t, del.Object.Content)

	r2, err := ix.IndexFile(ctx, src, "v2")
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	require.NotNil(t, r2.Object.Content)
	assert.Equal(t, "v2", *r2.Object.Content)

	hist, err := st.History(ctx, r1.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(hist), 3)
}

func TestIndexFileDeletion_RequiresExistingObject(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndexer(t)
	_, err := ix.IndexFileDeletion(ctx, testSource())
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestIndexFile_SourceHashChangeWritesNewVersion(t *testing.T) {
	ctx := context.Background()
	ix, st := newTestIndexer(t)
	src := testSource()

	r1, err := ix.IndexFile(ctx, src, "a")
	require.NoError(t, err)
	r2, err := ix.IndexFile(ctx, src, "b")
	require.NoError(t, err)
	assert.Equal(t, Updated, r2.Outcome)

	hist, err := st.History(ctx, r1.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestDeriveFileType(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/home/u/a.ts", "ts"},
		{"/home/u/README", ""},
		{"/home/u/archive.TAR.GZ", "gz"},
	}
	for _, c := range cases {
		src := model.NewFilesystemSource("FS1", c.path)
		assert.Equal(t, c.want, deriveFileType(src), c.path)
	}
}

func TestIdentityStableAcrossEntryPoints(t *testing.T) {
	// §8 invariant: sourced objects with identical source bindings share
	// an id regardless of which entry point first observed them.
	ctx := context.Background()
	ix, _ := newTestIndexer(t)
	src := testSource()

	d, err := ix.DiscoverFile(ctx, src)
	require.NoError(t, err)
	r, err := ix.IndexFile(ctx, src, "content")
	require.NoError(t, err)
	assert.Equal(t, d.ID, r.ID)
}
