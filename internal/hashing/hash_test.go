package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityHash_SourcedIsDeterministic(t *testing.T) {
	source := map[string]interface{}{
		"type":         "filesystem",
		"filesystemId": "FS1",
		"path":         "/home/u/a.ts",
	}

	a, err := IdentityHash("file", source, "")
	require.NoError(t, err)
	b, err := IdentityHash("file", source, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestIdentityHash_KeyOrderDoesNotMatter(t *testing.T) {
	source1 := map[string]interface{}{"type": "filesystem", "filesystemId": "FS1", "path": "/a"}
	source2 := map[string]interface{}{"path": "/a", "filesystemId": "FS1", "type": "filesystem"}

	h1, err := IdentityHash("file", source1, "")
	require.NoError(t, err)
	h2, err := IdentityHash("file", source2, "")
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "canonical JSON must sort keys regardless of Go map iteration order")
}

func TestIdentityHash_DifferentSourcesDiffer(t *testing.T) {
	source1 := map[string]interface{}{"type": "filesystem", "filesystemId": "FS1", "path": "/a"}
	source2 := map[string]interface{}{"type": "filesystem", "filesystemId": "FS1", "path": "/b"}

	h1, _ := IdentityHash("file", source1, "")
	h2, _ := IdentityHash("file", source2, "")

	assert.NotEqual(t, h1, h2)
}

func TestIdentityHash_Unsourced(t *testing.T) {
	h1, err := IdentityHash("chat", nil, "chat:sess-1")
	require.NoError(t, err)
	h2, err := IdentityHash("chat", nil, "chat:sess-1")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, _ := IdentityHash("chat", nil, "chat:sess-2")
	assert.NotEqual(t, h1, h3, "different assigned ids must hash differently")

	h4, _ := IdentityHash("toolcall", nil, "chat:sess-1")
	assert.NotEqual(t, h1, h4, "type must be part of the unsourced hash input")
}

func TestSourceHash(t *testing.T) {
	h1, ok1 := SourceHash([]byte("console.log(1);"))
	require.True(t, ok1)
	assert.Len(t, h1, 64)

	h2, ok2 := SourceHash([]byte("console.log(1);"))
	require.True(t, ok2)
	assert.Equal(t, h1, h2)

	h3, ok3 := SourceHash([]byte("console.log(2);"))
	require.True(t, ok3)
	assert.NotEqual(t, h1, h3)

	_, ok4 := SourceHash(nil)
	assert.False(t, ok4, "nil raw bytes must report ok=false, distinct from hashing empty content")

	hEmpty, okEmpty := SourceHash([]byte{})
	require.True(t, okEmpty)
	assert.NotEmpty(t, hEmpty)
}

func TestContentHash_ExcludesSourceAndContentHash(t *testing.T) {
	payload := map[string]interface{}{
		"content":      "hello",
		"source_hash":  "aaaa",
		"content_hash": "bbbb",
		"file_type":    "ts",
		"char_count":   5,
	}
	without := map[string]interface{}{
		"content":    "hello",
		"file_type":  "ts",
		"char_count": 5,
	}

	h1, err := ContentHash(payload)
	require.NoError(t, err)
	h2, err := ContentHash(without)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "source_hash and content_hash must not affect the content hash")
}

func TestContentHash_DoesNotMutateCaller(t *testing.T) {
	payload := map[string]interface{}{
		"content":     "hello",
		"source_hash": "aaaa",
	}
	_, err := ContentHash(payload)
	require.NoError(t, err)

	_, stillHasSourceHash := payload["source_hash"]
	assert.True(t, stillHasSourceHash, "ContentHash must clone before stripping keys, never mutate the caller's map")
}

func TestContentHash_SensitiveToEveryField(t *testing.T) {
	base := map[string]interface{}{"content": "hello", "char_count": 5}
	changed := map[string]interface{}{"content": "hello", "char_count": 6}

	h1, _ := ContentHash(base)
	h2, _ := ContentHash(changed)
	assert.NotEqual(t, h1, h2)
}

func TestCanonicalJSON_NoWhitespaceSortedKeys(t *testing.T) {
	v := map[string]interface{}{"b": 1, "a": map[string]interface{}{"z": 1, "y": 2}}
	out, err := CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(out))
}

func TestCanonicalJSON_NumbersHaveNoTrailingZeros(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"n":3}`, string(out))
}
