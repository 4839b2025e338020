package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []EmbeddedChunk {
	return []EmbeddedChunk{
		{Filename: "hi_chunk_000.txt", Text: "hello world", TokenCount: 2, Embedding: []float32{0.1, 0.2, 0.3}, EmbeddingModel: "embed-english-v3.0"},
		{Filename: "hi_chunk_001.txt", Text: "second chunk", TokenCount: 2, Embedding: []float32{0.4, 0.5, 0.6}, EmbeddingModel: "embed-english-v3.0"},
	}
}

func sampleMetadata() Metadata {
	return Metadata{
		UserID:              "u2@x.io",
		FileID:              "doc-1",
		OriginalFilename:    "hi.txt",
		EmbeddingModel:      "embed-english-v3.0",
		ChunkSize:           512,
		ChunkOverlapPercent: 0.1,
		StorageType:         "json",
	}
}

func TestJSONStore_RoundTrip(t *testing.T) {
	store := NewJSONStore(t.TempDir())
	testRoundTrip(t, store, true)
}

func TestColumnarStore_RoundTrip(t *testing.T) {
	store := NewColumnarStore(t.TempDir())
	testRoundTrip(t, store, false)
}

func testRoundTrip(t *testing.T, store Store, exact bool) {
	chunks := sampleChunks()
	meta := sampleMetadata()

	path, err := store.Save("doc-1", chunks, meta)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, store.Exists("doc-1"))

	loaded, err := store.Load("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", loaded.FileID)
	assert.Equal(t, 2, loaded.EmbeddingCount)
	assert.Equal(t, 3, loaded.Dimension)
	require.Len(t, loaded.Embeddings, 2)

	for i, want := range chunks {
		got := loaded.Embeddings[i]
		assert.Equal(t, want.Filename, got.Filename)
		assert.Equal(t, want.Text, got.Text)
		assert.Equal(t, want.TokenCount, got.TokenCount)
		assert.Equal(t, want.EmbeddingModel, got.EmbeddingModel)
		if exact {
			assert.Equal(t, want.Embedding, got.Embedding)
		} else {
			require.Len(t, got.Embedding, len(want.Embedding))
			for j := range want.Embedding {
				assert.InDelta(t, want.Embedding[j], got.Embedding[j], 1e-6)
			}
		}
	}

	files, err := store.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, files)

	deleted, err := store.Delete("doc-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, store.Exists("doc-1"))
}

func TestJSONStore_Idempotence(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(dir)
	chunks := sampleChunks()
	meta := sampleMetadata()

	p1, err := store.Save("doc-1", chunks, meta)
	require.NoError(t, err)
	first, err := readFile(p1)
	require.NoError(t, err)

	p2, err := store.Save("doc-1", chunks, meta)
	require.NoError(t, err)
	second, err := readFile(p2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNewStore_UnknownFormat(t *testing.T) {
	_, err := NewStore("weird", t.TempDir())
	require.Error(t, err)
}
