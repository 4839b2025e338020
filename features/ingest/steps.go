// Package ingest wires the generic pipeline engine to the concrete
// Convert → Chunk → Embed → Persist steps, and exposes the Upload Gate
// that starts a run.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orion/internal/embedding"
	"orion/internal/extractor"
	"orion/internal/orierr"
	"orion/internal/paths"
	"orion/internal/pipeline"
	"orion/internal/tokenizer"
	"orion/internal/vectorstore"
)

// Config carries the chunking/embedding/storage parameters the steps
// need, resolved once at startup from the immutable application config.
type Config struct {
	ChunkSize       int
	OverlapFraction float64
	EncoderName     string
	EmbeddingModel  string
	BatchSize       int
}

// ConvertStep produces processed_text/{base}.txt from the raw upload,
// dispatching to the Extractor registry by detected MIME type.
type ConvertStep struct {
	pipeline.BaseStep
	Registry *extractor.Registry
	Dirs     func(userID string) paths.UserDirs
	MIME     func(path string) (string, error)
}

func NewConvertStep(registry *extractor.Registry, dirs func(string) paths.UserDirs, mime func(string) (string, error)) *ConvertStep {
	return &ConvertStep{
		BaseStep: pipeline.BaseStep{StepName: "convert", Retries: 1},
		Registry: registry,
		Dirs:     dirs,
		MIME:     mime,
	}
}

func (s *ConvertStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	data, err := os.ReadFile(pctx.InputFilePath)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("read raw upload: %w", orierr.ErrIO)
	}

	mimeType, err := s.MIME(pctx.InputFilePath)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("detect mime: %w", orierr.ErrExtractionFailed)
	}

	ex, err := s.Registry.For(mimeType, pctx.OriginalFilename)
	if err != nil {
		return pipeline.StepResult{}, err
	}

	text, err := ex.Extract(data)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("extract: %w", orierr.ErrExtractionFailed)
	}

	dirs := s.Dirs(pctx.UserID)
	base := baseName(pctx.OriginalFilename)
	outPath := dirs.ConvertedTextPath(base)

	if err := os.WriteFile(outPath, []byte(text), 0o640); err != nil {
		return pipeline.StepResult{}, fmt.Errorf("write converted text: %w", orierr.ErrIO)
	}

	pctx.Metadata["converted_text_path"] = outPath
	pctx.Metadata["base_name"] = base
	return pipeline.StepResult{Status: pipeline.StatusSuccess, Message: "converted " + pctx.OriginalFilename}, nil
}

func baseName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext)
}

// ChunkStep encodes the converted text and slices it into overlapping,
// tokenizer-exact windows written as individual chunk files.
type ChunkStep struct {
	pipeline.BaseStep
	Config Config
	Dirs   func(userID string) paths.UserDirs
}

func NewChunkStep(cfg Config, dirs func(string) paths.UserDirs) *ChunkStep {
	return &ChunkStep{BaseStep: pipeline.BaseStep{StepName: "chunk", Retries: 0}, Config: cfg, Dirs: dirs}
}

func (s *ChunkStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	textPath, _ := pctx.Metadata["converted_text_path"].(string)
	base, _ := pctx.Metadata["base_name"].(string)

	raw, err := os.ReadFile(textPath)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("read converted text: %w", orierr.ErrIO)
	}

	enc, err := tokenizer.Load(s.Config.EncoderName)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("load encoder: %w", orierr.ErrChunkingFailed)
	}

	tokens := enc.Encode(string(raw))
	chunkSize := s.Config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 512
	}
	overlap := int(float64(chunkSize) * s.Config.OverlapFraction)

	dirs := s.Dirs(pctx.UserID)
	var files []string
	width := 3

	total := len(tokens)
	if total == 0 {
		return pipeline.StepResult{}, fmt.Errorf("empty document: %w", orierr.ErrChunkingFailed)
	}

	start := 0
	idx := 0
	for {
		end := start + chunkSize
		if end > total {
			end = total
		}
		slice := tokens[start:end]
		if len(slice) == 0 {
			break
		}
		text := enc.Decode(slice)

		digits := width
		for idx >= pow10(digits) {
			digits++
		}
		name := fmt.Sprintf("%s_chunk_%0*d.txt", base, digits, idx)
		path := filepath.Join(dirs.RawChunks, name)
		if err := os.WriteFile(path, []byte(text), 0o640); err != nil {
			return pipeline.StepResult{}, fmt.Errorf("write chunk: %w", orierr.ErrIO)
		}
		files = append(files, path)

		if end >= total {
			break
		}
		start = end - overlap
		idx++
	}

	pctx.Metadata["chunks_dir"] = dirs.RawChunks
	pctx.Metadata["chunk_count"] = len(files)
	pctx.Metadata["chunk_files"] = files
	return pipeline.StepResult{Status: pipeline.StatusSuccess, Message: fmt.Sprintf("wrote %d chunks", len(files))}, nil
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// EmbedStep reads chunk files in emission order and embeds them in
// batches via the configured EmbeddingService.
type EmbedStep struct {
	pipeline.BaseStep
	Config  Config
	Service embedding.Service
}

func NewEmbedStep(cfg Config, svc embedding.Service) *EmbedStep {
	return &EmbedStep{BaseStep: pipeline.BaseStep{StepName: "embed", Retries: 2}, Config: cfg, Service: svc}
}

func (s *EmbedStep) ShouldRetry(attempt int, err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), orierr.ErrAuth.Error()) {
		return false
	}
	return attempt < s.Retries
}

func (s *EmbedStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	files, _ := pctx.Metadata["chunk_files"].([]string)

	enc, err := tokenizer.Load(s.Config.EncoderName)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("load encoder: %w", orierr.ErrChunkingFailed)
	}

	texts := make([]string, len(files))
	tokenCounts := make([]int, len(files))
	for i, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return pipeline.StepResult{}, fmt.Errorf("read chunk %s: %w", f, orierr.ErrIO)
		}
		texts[i] = string(b)
		tokenCounts[i] = len(enc.Encode(texts[i]))
	}

	batchSize := s.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 96
	}

	records := make([]vectorstore.EmbeddedChunk, 0, len(files))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := s.Service.Embed(ctx, batch, s.Config.EmbeddingModel)
		if err != nil {
			return pipeline.StepResult{}, err
		}
		if len(vectors) != len(batch) {
			return pipeline.StepResult{}, fmt.Errorf("embedding count mismatch: %w", orierr.ErrInvalidResponse)
		}

		for i, v := range vectors {
			idx := start + i
			records = append(records, vectorstore.EmbeddedChunk{
				Filename:       filepath.Base(files[idx]),
				Text:           texts[idx],
				TokenCount:     tokenCounts[idx],
				Embedding:      v,
				EmbeddingModel: s.Config.EmbeddingModel,
			})
		}
	}

	pctx.Metadata["embeddings_data"] = records
	return pipeline.StepResult{Status: pipeline.StatusSuccess, Message: fmt.Sprintf("embedded %d chunks", len(records))}, nil
}

// StoreFactory builds the vector store rooted at a user's persisted-
// vectors directory. Each user has their own on-disk library, so the
// pipeline (built once at startup and shared across every run) cannot
// close over a single fixed Store the way it can a stateless service.
type StoreFactory func(userID string) (vectorstore.Store, error)

// PersistStep writes the embedded chunk set via the user's VectorStore,
// atomically.
type PersistStep struct {
	pipeline.BaseStep
	Config   Config
	StoreFor StoreFactory
}

func NewPersistStep(cfg Config, storeFor StoreFactory) *PersistStep {
	return &PersistStep{BaseStep: pipeline.BaseStep{StepName: "persist", Retries: 1}, Config: cfg, StoreFor: storeFor}
}

func (s *PersistStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	records, _ := pctx.Metadata["embeddings_data"].([]vectorstore.EmbeddedChunk)

	store, err := s.StoreFor(pctx.UserID)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("resolve store: %w", orierr.ErrPersistFailed)
	}

	meta := vectorstore.Metadata{
		UserID:              pctx.UserID,
		FileID:              pctx.DocumentID,
		OriginalFilename:    pctx.OriginalFilename,
		EmbeddingModel:      s.Config.EmbeddingModel,
		ChunkSize:           s.Config.ChunkSize,
		ChunkOverlapPercent: s.Config.OverlapFraction,
		StorageType:         store.Format(),
	}

	path, err := store.Save(pctx.DocumentID, records, meta)
	if err != nil {
		return pipeline.StepResult{}, fmt.Errorf("persist embeddings: %w", orierr.ErrPersistFailed)
	}

	pctx.Metadata["embeddings_path"] = path
	return pipeline.StepResult{Status: pipeline.StatusSuccess, Message: "persisted " + path}, nil
}

// Build composes the four steps into the ingest pipeline instance.
func Build(cfg Config, registry *extractor.Registry, dirsFor func(string) paths.UserDirs, mimeDetect func(string) (string, error), svc embedding.Service, storeFor StoreFactory, timeoutSeconds int) *pipeline.Pipeline {
	steps := []pipeline.Step{
		NewConvertStep(registry, dirsFor, mimeDetect),
		NewChunkStep(cfg, dirsFor),
		NewEmbedStep(cfg, svc),
		NewPersistStep(cfg, storeFor),
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 300
	}
	return pipeline.New("ingest", steps, time.Duration(timeoutSeconds)*time.Second)
}
