// Package vectorstore persists (embedding vector, chunk text, metadata)
// tuples per document, in two interchangeable on-disk formats: a
// human-readable row-oriented JSON format and a columnar compressed
// binary format. Both formats are all-or-nothing via temp-write-then-
// rename, so a concurrent reader never observes a half-written set.
package vectorstore

// EmbeddedChunk is the per-chunk record persisted alongside its
// vector: the in-memory shape produced by the Embed step.
type EmbeddedChunk struct {
	Filename       string    `json:"filename"`
	Text           string    `json:"text"`
	TokenCount     int       `json:"token_count"`
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model"`
}

// Metadata is the document-level metadata attached to a persisted set.
type Metadata struct {
	UserID               string `json:"email"`
	FileID               string `json:"file_id"`
	OriginalFilename     string `json:"original_filename"`
	EmbeddingModel       string `json:"embedding_model"`
	ChunkSize            int    `json:"chunk_size"`
	ChunkOverlapPercent  float64 `json:"chunk_overlap_percent"`
	StorageType          string `json:"storage_type"`
}

// PersistedSet is the complete set of embedded chunks for one
// document, as loaded back from storage.
type PersistedSet struct {
	FileID         string
	Embeddings     []EmbeddedChunk
	Metadata       Metadata
	EmbeddingCount int
	Dimension      int
}

// Store is the persistence contract both on-disk formats implement.
type Store interface {
	// Save writes embeddings for fileID, replacing any existing set
	// atomically (temp-write-then-rename).
	Save(fileID string, embeddings []EmbeddedChunk, metadata Metadata) (string, error)
	// Load returns the full persisted set for fileID.
	Load(fileID string) (*PersistedSet, error)
	// Exists reports whether a set is persisted for fileID.
	Exists(fileID string) bool
	// Delete removes the persisted set for fileID, if any.
	Delete(fileID string) (bool, error)
	// ListFiles returns all persisted file ids, sorted ascending.
	ListFiles() ([]string, error)
	// Format names the on-disk format this store implements ("json"
	// or "hdf5").
	Format() string
}

// NewStore builds the store bound to storageType ("json" default, or
// "hdf5" for the columnar format) rooted at dir.
func NewStore(storageType, dir string) (Store, error) {
	switch storageType {
	case "", "json":
		return NewJSONStore(dir), nil
	case "hdf5":
		return NewColumnarStore(dir), nil
	default:
		return nil, &UnknownFormatError{Format: storageType}
	}
}

// UnknownFormatError is returned by NewStore for an unrecognized
// storage_format configuration value.
type UnknownFormatError struct{ Format string }

func (e *UnknownFormatError) Error() string {
	return "unknown vector storage format: " + e.Format
}
