package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := Doc{IDField: "obj-1", "type": "file", "content": "hello"}
	handle, err := s.Put(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, handle)
	require.NoError(t, s.AwaitTx(ctx, handle))

	got, err := s.Get(ctx, "obj-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got["content"])
}

func TestGet_NotFoundIsNullRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPut_MissingIDFieldFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, Doc{"type": "file"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestVersioning_LatestWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h1, err := s.Put(ctx, Doc{IDField: "obj-1", "content": "v1"})
	require.NoError(t, err)
	require.NoError(t, s.AwaitTx(ctx, h1))

	h2, err := s.Put(ctx, Doc{IDField: "obj-1", "content": "v2"})
	require.NoError(t, err)
	require.NoError(t, s.AwaitTx(ctx, h2))

	got, err := s.Get(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got["content"])

	hist, err := s.History(ctx, "obj-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].ValidFrom.Before(hist[1].ValidFrom) || hist[0].ValidFrom.Equal(hist[1].ValidFrom))
}

func TestGetAsOf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h1, _ := s.Put(ctx, Doc{IDField: "obj-1", "content": "v1"})
	require.NoError(t, s.AwaitTx(ctx, h1))

	mid := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)

	h2, _ := s.Put(ctx, Doc{IDField: "obj-1", "content": "v2"})
	require.NoError(t, s.AwaitTx(ctx, h2))

	asOfMid, err := s.GetAsOf(ctx, "obj-1", mid)
	require.NoError(t, err)
	require.NotNil(t, asOfMid)
	assert.Equal(t, "v1", asOfMid["content"])

	asOfNow, err := s.GetAsOf(ctx, "obj-1", time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, asOfNow)
	assert.Equal(t, "v2", asOfNow["content"])
}

func TestHistory_EmptyForUnknownID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hist, err := s.History(ctx, "never-existed")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestQuery_BatchFetchSkipsMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h1, _ := s.Put(ctx, Doc{IDField: "obj-1", "content": "a"})
	require.NoError(t, s.AwaitTx(ctx, h1))
	h2, _ := s.Put(ctx, Doc{IDField: "obj-2", "content": "b"})
	require.NoError(t, s.AwaitTx(ctx, h2))

	docs, err := s.Query(ctx, Query{IDs: []string{"obj-1", "missing", "obj-2"}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestConcurrentPutsOnSameID_BothSucceedAsVersions(t *testing.T) {
	// SPEC_FULL.md §5 / §8 scenario 1: two clients writing the same id
	// concurrently both succeed; the store records both as versions.
	ctx := context.Background()
	s := newTestStore(t)

	done := make(chan error, 2)
	write := func(content string) {
		h, err := s.Put(ctx, Doc{IDField: "shared", "content": content})
		if err != nil {
			done <- err
			return
		}
		done <- s.AwaitTx(ctx, h)
	}
	go write("from-a")
	go write("from-b")

	require.NoError(t, <-done)
	require.NoError(t, <-done)

	hist, err := s.History(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h1, _ := s.Put(ctx, Doc{IDField: "obj-1", "type": "file", "content": "a"})
	require.NoError(t, s.AwaitTx(ctx, h1))
	h2, _ := s.Put(ctx, Doc{IDField: "obj-2", "type": "toolcall", "content": nil})
	require.NoError(t, s.AwaitTx(ctx, h2))

	exported, err := s.ExportAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, exported, 2)

	filesOnly, err := s.ExportAll(ctx, "file")
	require.NoError(t, err)
	require.Len(t, filesOnly, 1)
	assert.Equal(t, "obj-1", filesOnly[0][IDField])

	dir := t.TempDir()
	s2, err := NewSQLiteStore(filepath.Join(dir, "restored.db"), nil)
	require.NoError(t, err)
	defer s2.Close()

	n, err := s2.Import(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	restored, err := s2.Get(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "a", restored["content"])
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	s, err := NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	h1, _ := s.Put(ctx, Doc{IDField: "obj-1", "type": "file"})
	require.NoError(t, s.AwaitTx(ctx, h1))
	h2, _ := s.Put(ctx, Doc{IDField: "obj-1", "type": "file"})
	require.NoError(t, s.AwaitTx(ctx, h2))
	h3, _ := s.Put(ctx, Doc{IDField: "obj-2", "type": "toolcall"})
	require.NoError(t, s.AwaitTx(ctx, h3))

	st, err := s.Stats(ctx, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalVersions)
	assert.Equal(t, 2, st.DistinctIDs)
	assert.Len(t, st.ByType, 2)
}
