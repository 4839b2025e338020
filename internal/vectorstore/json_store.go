package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"orion/internal/orierr"
)

// JSONStore is the row-oriented, human-readable persistence format:
// one file at `{file_id}_embeddings.json` holding the full in-memory
// record verbatim.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

func (s *JSONStore) Format() string { return "json" }

type jsonDocument struct {
	FileID         string          `json:"file_id"`
	Embeddings     []EmbeddedChunk `json:"embeddings"`
	Metadata       Metadata        `json:"metadata"`
	StorageFormat  string          `json:"storage_format"`
	EmbeddingCount int             `json:"embedding_count"`
}

func (s *JSONStore) path(fileID string) string {
	return filepath.Join(s.dir, fileID+"_embeddings.json")
}

// Save writes the document atomically: encode to a temp file in the
// same directory, then rename over the final path, so a concurrent
// Load never observes a partially written file.
func (s *JSONStore) Save(fileID string, embeddings []EmbeddedChunk, metadata Metadata) (string, error) {
	doc := jsonDocument{
		FileID:         fileID,
		Embeddings:     embeddings,
		Metadata:       metadata,
		StorageFormat:  "json",
		EmbeddingCount: len(embeddings),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal embeddings: %w: %w", orierr.ErrPersistFailed, err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create vector store dir: %w: %w", orierr.ErrPersistFailed, err)
	}

	finalPath := s.path(fileID)
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+fileID+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w: %w", orierr.ErrPersistFailed, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write embeddings: %w: %w", orierr.ErrPersistFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w: %w", orierr.ErrPersistFailed, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w: %w", orierr.ErrPersistFailed, err)
	}

	return finalPath, nil
}

func (s *JSONStore) Load(fileID string) (*PersistedSet, error) {
	data, err := os.ReadFile(s.path(fileID))
	if err != nil {
		return nil, fmt.Errorf("read embeddings file: %w: %w", orierr.ErrPersistFailed, err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode embeddings file: %w: %w", orierr.ErrPersistFailed, err)
	}

	dim := 0
	if len(doc.Embeddings) > 0 {
		dim = len(doc.Embeddings[0].Embedding)
	}

	return &PersistedSet{
		FileID:         doc.FileID,
		Embeddings:     doc.Embeddings,
		Metadata:       doc.Metadata,
		EmbeddingCount: doc.EmbeddingCount,
		Dimension:      dim,
	}, nil
}

func (s *JSONStore) Exists(fileID string) bool {
	_, err := os.Stat(s.path(fileID))
	return err == nil
}

func (s *JSONStore) Delete(fileID string) (bool, error) {
	err := os.Remove(s.path(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete embeddings file: %w: %w", orierr.ErrPersistFailed, err)
	}
	return true, nil
}

func (s *JSONStore) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list vector store dir: %w: %w", orierr.ErrPersistFailed, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, "_embeddings.json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, "_embeddings.json"))
	}
	sort.Strings(ids)
	return ids, nil
}
