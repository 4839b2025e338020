package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForUser(t *testing.T) {
	d := ForUser("/data", "u2@x.io")

	assert.Equal(t, filepath.Join("/data", "u2@x.io", "raw_uploads"), d.RawUploads)
	assert.Equal(t, filepath.Join("/data", "u2@x.io", "processed_text"), d.ProcessedText)
	assert.Equal(t, filepath.Join("/data", "u2@x.io", "raw_chunks"), d.RawChunks)
	assert.Equal(t, filepath.Join("/data", "u2@x.io", "processed_vectors"), d.ProcessedVectors)
}

func TestUserDirs_Ensure(t *testing.T) {
	base := t.TempDir()
	d := ForUser(base, "u1@x.io")

	assert.NoError(t, d.Ensure())
	assert.DirExists(t, d.RawUploads)
	assert.DirExists(t, d.ProcessedText)
	assert.DirExists(t, d.RawChunks)
	assert.DirExists(t, d.ProcessedVectors)

	// Idempotent on a second call.
	assert.NoError(t, d.Ensure())
}

func TestRawUploadPath(t *testing.T) {
	d := ForUser("/data", "u2@x.io")
	got := d.RawUploadPath("abc-123", "hi.txt")
	assert.Equal(t, filepath.Join(d.RawUploads, "abc-123_hi.txt"), got)
}

func TestEmbeddingsPath(t *testing.T) {
	d := ForUser("/data", "u2@x.io")
	assert.Equal(t, filepath.Join(d.ProcessedVectors, "abc_embeddings.json"), d.EmbeddingsPath("abc", "json"))
	assert.Equal(t, filepath.Join(d.ProcessedVectors, "abc_embeddings.h5"), d.EmbeddingsPath("abc", "hdf5"))
}
