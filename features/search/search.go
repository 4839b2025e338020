// Package search implements the similarity-search engine: pure cosine
// ranking and a hybrid cosine+BM25 ranking over a user's persisted
// embedding library.
package search

import (
	"context"
	"sort"
	"time"

	"orion/internal/embedding"
	"orion/internal/middleware"
	"orion/internal/orierr"
	"orion/internal/querylog"
	"orion/internal/vectorstore"
)

const (
	AlgorithmCosine = "cosine"
	AlgorithmHybrid = "hybrid"

	MinLimit = 1
	MaxLimit = 100
)

// Algorithms is the static list the /algorithms endpoint reports.
var Algorithms = []string{AlgorithmCosine, AlgorithmHybrid}

// Result is one ranked chunk.
type Result struct {
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunk_index"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
}

// Response is the Search Engine's contract return value.
type Response struct {
	Algorithm         string        `json:"algorithm"`
	Results           []Result      `json:"results"`
	DocumentsSearched int           `json:"documents_searched"`
	ChunksSearched    int           `json:"chunks_searched"`
	Duration          time.Duration `json:"duration"`
	RestrictedModel   string        `json:"restricted_model,omitempty"`
}

// StoreFactory builds the vector store rooted at a user's persisted-
// vectors directory, matching the factory the ingest pipeline's
// PersistStep is built with.
type StoreFactory func(userID string) (vectorstore.Store, error)

// QueryLogger records one completed search, independent of the
// structured application log, for offline query-volume analysis.
// Logging happens after the response is computed and never blocks or
// fails the search itself.
type QueryLogger interface {
	Log(entry querylog.Entry)
}

// Engine ranks a user's persisted chunks against a query.
type Engine struct {
	Embedding embedding.Service
	StoreFor  StoreFactory
	Model     string
	Alpha     float64
	Logger    QueryLogger
}

func NewEngine(svc embedding.Service, storeFor StoreFactory, model string, alpha float64) *Engine {
	if alpha <= 0 {
		alpha = 0.7
	}
	return &Engine{Embedding: svc, StoreFor: storeFor, Model: model, Alpha: alpha}
}

// candidate is one chunk paired with its owning document, flattened
// across every persisted set in the user's library.
type candidate struct {
	documentID string
	filename   string
	chunkIndex int
	text       string
	vector     []float32
}

// Search runs the named algorithm against every persisted set for
// userID. limit is clamped to [MinLimit, MaxLimit] here; a value
// outside that range is not an error.
func (e *Engine) Search(ctx context.Context, userID, query, algorithm string, limit int) (*Response, error) {
	if algorithm != AlgorithmCosine && algorithm != AlgorithmHybrid {
		return nil, orierr.ErrUnknownAlgorithm
	}
	if limit < MinLimit {
		limit = MinLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := time.Now()

	store, err := e.StoreFor(userID)
	if err != nil {
		return nil, err
	}

	fileIDs, err := store.ListFiles()
	if err != nil {
		return nil, err
	}
	if len(fileIDs) == 0 {
		return nil, orierr.ErrEmptyLibrary
	}

	candidates, restrictedModel, docsSearched, err := e.loadCandidates(store, fileIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, orierr.ErrEmptyLibrary
	}

	model := restrictedModel
	if model == "" {
		model = e.Model
	}
	queryVecs, err := e.Embedding.Embed(ctx, []string{query}, model)
	if err != nil {
		return nil, orierr.ErrEmbeddingFailed
	}
	qv := queryVecs[0]

	var scored []scoredCandidate
	switch algorithm {
	case AlgorithmCosine:
		scored = scoreCosine(qv, candidates)
	case AlgorithmHybrid:
		scored = scoreHybrid(qv, query, candidates, e.Alpha)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].c.documentID != scored[j].c.documentID {
			return scored[i].c.documentID < scored[j].c.documentID
		}
		return scored[i].c.chunkIndex < scored[j].c.chunkIndex
	})

	if limit > len(scored) {
		limit = len(scored)
	}

	results := make([]Result, limit)
	for i := 0; i < limit; i++ {
		results[i] = Result{
			Rank:       i + 1,
			Score:      scored[i].score,
			Text:       scored[i].c.text,
			ChunkIndex: scored[i].c.chunkIndex,
			DocumentID: scored[i].c.documentID,
			Filename:   scored[i].c.filename,
		}
	}

	duration := time.Since(start)
	resp := &Response{
		Algorithm:         algorithm,
		Results:           results,
		DocumentsSearched: docsSearched,
		ChunksSearched:    len(candidates),
		Duration:          duration,
		RestrictedModel:   restrictedModel,
	}

	if e.Logger != nil {
		e.Logger.Log(querylog.Entry{
			UserID:        userID,
			Query:         query,
			Algorithm:     algorithm,
			NumResults:    len(results),
			Duration:      duration,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	return resp, nil
}

// loadCandidates loads every persisted set for the user and flattens
// their chunks. If more than one embedding model is present across the
// library, it restricts to the dominant model (the one with the most
// chunks) and reports that restriction to the caller.
func (e *Engine) loadCandidates(store vectorstore.Store, fileIDs []string) ([]candidate, string, int, error) {
	type loaded struct {
		fileID string
		set    *vectorstore.PersistedSet
	}

	var sets []loaded
	modelCounts := map[string]int{}
	for _, id := range fileIDs {
		set, err := store.Load(id)
		if err != nil {
			continue
		}
		sets = append(sets, loaded{fileID: id, set: set})
		modelCounts[set.Metadata.EmbeddingModel] += set.EmbeddingCount
	}

	dominant := ""
	best := -1
	for model, count := range modelCounts {
		if count > best {
			dominant = model
			best = count
		}
	}
	restricted := ""
	if len(modelCounts) > 1 {
		restricted = dominant
	}

	var candidates []candidate
	docsSearched := 0
	for _, l := range sets {
		if restricted != "" && l.set.Metadata.EmbeddingModel != restricted {
			continue
		}
		docsSearched++
		for i, chunk := range l.set.Embeddings {
			candidates = append(candidates, candidate{
				documentID: l.fileID,
				filename:   l.set.Metadata.OriginalFilename,
				chunkIndex: i,
				text:       chunk.Text,
				vector:     chunk.Embedding,
			})
		}
	}

	return candidates, restricted, docsSearched, nil
}

type scoredCandidate struct {
	c     candidate
	score float64
}
