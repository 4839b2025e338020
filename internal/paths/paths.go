// Package paths resolves the on-disk directory layout for a user's
// documents under the configured base directory.
package paths

import (
	"os"
	"path/filepath"
)

// UserDirs holds the four per-user directory locations described in
// the on-disk layout: raw uploads, converted text, raw chunk files,
// and persisted vector sets.
type UserDirs struct {
	RawUploads      string
	ProcessedText   string
	RawChunks       string
	ProcessedVectors string
}

// ForUser is a pure function from (base directory, user id) to the
// four per-user directory locations. It performs no I/O.
func ForUser(baseDir, userID string) UserDirs {
	root := filepath.Join(baseDir, userID)
	return UserDirs{
		RawUploads:       filepath.Join(root, "raw_uploads"),
		ProcessedText:    filepath.Join(root, "processed_text"),
		RawChunks:        filepath.Join(root, "raw_chunks"),
		ProcessedVectors: filepath.Join(root, "processed_vectors"),
	}
}

// Ensure lazily creates all four directories, idempotently.
func (d UserDirs) Ensure() error {
	for _, dir := range []string{d.RawUploads, d.ProcessedText, d.RawChunks, d.ProcessedVectors} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return nil
}

// RawUploadPath builds the raw-upload filename for a document id and
// original filename: `{id}_{filename}`.
func (d UserDirs) RawUploadPath(docID, filename string) string {
	return filepath.Join(d.RawUploads, docID+"_"+filename)
}

// ConvertedTextPath builds the converted-text filename for a base name
// (original filename without extension).
func (d UserDirs) ConvertedTextPath(base string) string {
	return filepath.Join(d.ProcessedText, base+".txt")
}

// EmbeddingsPath builds the persisted-vector filename for a document id
// under the given storage format ("json" or "hdf5").
func (d UserDirs) EmbeddingsPath(docID, format string) string {
	ext := ".json"
	if format == "hdf5" {
		ext = ".h5"
	}
	return filepath.Join(d.ProcessedVectors, docID+"_embeddings"+ext)
}
