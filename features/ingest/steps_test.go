package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orion/internal/embedding"
	"orion/internal/extractor"
	"orion/internal/paths"
	"orion/internal/pipeline"
	"orion/internal/vectorstore"
)

func testDirs(t *testing.T, userID string) func(string) paths.UserDirs {
	base := t.TempDir()
	return func(u string) paths.UserDirs {
		d := paths.ForUser(base, u)
		require.NoError(t, d.Ensure())
		return d
	}
}

func writeRaw(t *testing.T, dirsFor func(string) paths.UserDirs, userID, docID, filename, content string) string {
	dirs := dirsFor(userID)
	path := dirs.RawUploadPath(docID, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestConvertStep_PlainTextPassthrough(t *testing.T) {
	dirsFor := testDirs(t, "u2@x.io")
	rawPath := writeRaw(t, dirsFor, "u2@x.io", "doc-1", "hi.txt", "hello world")

	step := NewConvertStep(extractor.NewRegistry(), dirsFor, DetectMIME)
	pctx := pipeline.NewContext("doc-1", "u2@x.io", "hi.txt", rawPath)

	result, err := step.Execute(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, result.Status)

	textPath := pctx.Metadata["converted_text_path"].(string)
	data, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, "hi", pctx.Metadata["base_name"])
}

// TestChunkStep_S2_TinySingleChunk mirrors the spec's S2 scenario: a
// 12-byte document tokenizes to far fewer than chunk_size tokens and
// must produce exactly one chunk file with the original text intact.
func TestChunkStep_S2_TinySingleChunk(t *testing.T) {
	dirsFor := testDirs(t, "u2@x.io")
	dirs := dirsFor("u2@x.io")
	textPath := dirs.ConvertedTextPath("hi")
	require.NoError(t, os.WriteFile(textPath, []byte("hello world"), 0o640))

	cfg := Config{ChunkSize: 512, OverlapFraction: 0.1, EncoderName: "cl100k_base"}
	step := NewChunkStep(cfg, dirsFor)
	pctx := pipeline.NewContext("doc-1", "u2@x.io", "hi.txt", "")
	pctx.Metadata["converted_text_path"] = textPath
	pctx.Metadata["base_name"] = "hi"

	result, err := step.Execute(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, 1, pctx.Metadata["chunk_count"])

	files := pctx.Metadata["chunk_files"].([]string)
	require.Len(t, files, 1)
	assert.Equal(t, "hi_chunk_000.txt", filepath.Base(files[0]))

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

type fakeEmbeddingService struct{ dim int }

func (f fakeEmbeddingService) Embed(ctx context.Context, texts []string, model string) ([]embedding.Vector, error) {
	vecs := make([]embedding.Vector, len(texts))
	for i := range texts {
		v := make(embedding.Vector, f.dim)
		v[0] = float32(i + 1)
		vecs[i] = v
	}
	return vecs, nil
}
func (f fakeEmbeddingService) Dimension(model string) (int, bool) { return f.dim, true }

func TestEmbedStep_PreservesOrder(t *testing.T) {
	dirsFor := testDirs(t, "u2@x.io")
	dirs := dirsFor("u2@x.io")
	f0 := filepath.Join(dirs.RawChunks, "hi_chunk_000.txt")
	f1 := filepath.Join(dirs.RawChunks, "hi_chunk_001.txt")
	require.NoError(t, os.WriteFile(f0, []byte("first chunk"), 0o640))
	require.NoError(t, os.WriteFile(f1, []byte("second chunk"), 0o640))

	cfg := Config{EncoderName: "cl100k_base", EmbeddingModel: "embed-english-v3.0", BatchSize: 96}
	step := NewEmbedStep(cfg, fakeEmbeddingService{dim: 4})
	pctx := pipeline.NewContext("doc-1", "u2@x.io", "hi.txt", "")
	pctx.Metadata["chunk_files"] = []string{f0, f1}

	result, err := step.Execute(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, result.Status)

	records := pctx.Metadata["embeddings_data"].([]vectorstore.EmbeddedChunk)
	require.Len(t, records, 2)
	assert.Equal(t, "first chunk", records[0].Text)
	assert.Equal(t, float32(1), records[0].Embedding[0])
	assert.Equal(t, "second chunk", records[1].Text)
	assert.Equal(t, float32(2), records[1].Embedding[0])
}

func TestPersistStep_WritesSet(t *testing.T) {
	dir := t.TempDir()
	store := vectorstore.NewJSONStore(dir)
	cfg := Config{ChunkSize: 512, OverlapFraction: 0.1, EmbeddingModel: "embed-english-v3.0"}
	step := NewPersistStep(cfg, func(string) (vectorstore.Store, error) { return store, nil })

	pctx := pipeline.NewContext("doc-1", "u2@x.io", "hi.txt", "")
	pctx.Metadata["embeddings_data"] = []vectorstore.EmbeddedChunk{
		{Filename: "hi_chunk_000.txt", Text: "hello world", TokenCount: 2, Embedding: []float32{0.1, 0.2}, EmbeddingModel: "embed-english-v3.0"},
	}

	result, err := step.Execute(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.True(t, store.Exists("doc-1"))

	set, err := store.Load("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, set.EmbeddingCount)
}
