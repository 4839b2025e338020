// Package stats computes the per-user library-stats summary: whether
// a library exists at all, how many documents and chunks it holds, how
// many of those chunks carry embeddings, and how many raw bytes have
// been uploaded.
package stats

import (
	"context"
	"os"
	"regexp"

	"orion/internal/orierr"
	"orion/internal/paths"
	"orion/internal/vectorstore"
)

// userIDPattern mirrors the ingest gate's basic email-like validation.
var userIDPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Summary is the library-stats response body.
type Summary struct {
	Exists             bool `json:"exists"`
	DocumentCount      int  `json:"document_count"`
	ChunkCount         int  `json:"chunk_count"`
	EmbeddedChunkCount int  `json:"embedded_chunk_count"`
	TotalRawBytes      int64 `json:"total_raw_bytes"`
}

// StoreFactory builds the vector store rooted at the given persisted-
// vectors directory. Unlike the ingest and search factories, it takes
// the directory path rather than a user id.
type StoreFactory func(dir string) (vectorstore.Store, error)

type Service struct {
	baseDir string
	dirsFor func(userID string) paths.UserDirs
	store   StoreFactory
}

func NewService(baseDir string, dirsFor func(string) paths.UserDirs, store StoreFactory) *Service {
	return &Service{baseDir: baseDir, dirsFor: dirsFor, store: store}
}

// Get computes the library-stats summary for userID. A user who has
// never uploaded anything gets Exists=false and all-zero counts,
// rather than an error.
func (s *Service) Get(ctx context.Context, userID string) (*Summary, error) {
	if !userIDPattern.MatchString(userID) {
		return nil, orierr.ErrInvalidUser
	}

	dirs := s.dirsFor(userID)

	totalBytes, uploadsExist, err := sumRawUploadBytes(dirs.RawUploads)
	if err != nil {
		return nil, err
	}

	store, err := s.store(dirs.ProcessedVectors)
	if err != nil {
		return nil, err
	}

	fileIDs, err := store.ListFiles()
	if err != nil {
		return nil, err
	}

	if !uploadsExist && len(fileIDs) == 0 {
		return &Summary{Exists: false}, nil
	}

	chunkCount := 0
	embeddedCount := 0
	for _, id := range fileIDs {
		set, err := store.Load(id)
		if err != nil {
			return nil, err
		}
		chunkCount += len(set.Embeddings)
		for _, e := range set.Embeddings {
			if len(e.Embedding) > 0 {
				embeddedCount++
			}
		}
	}

	return &Summary{
		Exists:             true,
		DocumentCount:      len(fileIDs),
		ChunkCount:         chunkCount,
		EmbeddedChunkCount: embeddedCount,
		TotalRawBytes:      totalBytes,
	}, nil
}

func sumRawUploadBytes(dir string) (int64, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, true, err
		}
		total += info.Size()
	}
	return total, true, nil
}
