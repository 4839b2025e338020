package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orion/internal/app"
	"orion/internal/config"
	"orion/internal/testutils"
)

// stubEmbedProvider fakes just enough of Cohere's embed endpoint to
// drive the pipeline end to end without a real network call: one
// deterministic-length vector per input text.
func stubEmbedProvider(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		rng := rand.New(rand.NewSource(1))
		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			vec := make([]float32, 1024)
			for j := range vec {
				vec[j] = rng.Float32()
			}
			embeddings[i] = vec
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
}

// TestApp_EndToEnd_Ingestion drives a real upload through the wired
// HTTP handler, waits for the background pipeline to persist it, and
// confirms it becomes searchable, with the app wired against a real
// Postgres database. It checks only the successful path; no run
// fails, so nothing is written to the Job ledger.
func TestApp_EndToEnd_Ingestion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	embedStub := stubEmbedProvider(t)
	defer embedStub.Close()

	cfg := &config.Config{
		DBHost:                     "unused", // connection is via s.DB directly
		BaseDir:                    t.TempDir(),
		MaxFileSize:                1 << 20,
		VectorStorageType:          "json",
		ChunkSize:                  512,
		ChunkOverlapPercent:        0.1,
		TokenizerName:              "cl100k_base",
		EmbeddingProvider:          "cohere",
		EmbeddingAPIKey:            "test-key",
		EmbeddingModel:             "embed-english-v3.0",
		EmbeddingBaseURL:           embedStub.URL,
		EmbeddingBatchSize:         96,
		HybridAlpha:                0.7,
		PipelineTimeoutSeconds:     30,
		WorkerPoolSize:             1,
		TaskQueue:                  "inprocess",
		ServerPort:                 0,
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 1,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	application, err := app.New(cfg, s.DB, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go application.Queue.Run(ctx)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("user_id", "e2e@example.com"))
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("the quick brown fox jumps over the lazy dog"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	application.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var ingestResp struct {
		Data struct {
			DocumentID string `json:"document_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ingestResp))
	require.NotEmpty(t, ingestResp.Data.DocumentID)

	// The pipeline runs in the background; poll search until the
	// document is persisted and searchable, or fail after a timeout.
	deadline := time.Now().Add(15 * time.Second)
	var searchRec *httptest.ResponseRecorder
	for time.Now().Before(deadline) {
		searchRec = httptest.NewRecorder()
		searchReq := httptest.NewRequest(http.MethodGet, "/search?user_id=e2e@example.com&query=fox&algorithm=cosine", nil)
		application.Handler.ServeHTTP(searchRec, searchReq)
		if searchRec.Code == http.StatusOK {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	require.NotNil(t, searchRec)
	assert.Equal(t, http.StatusOK, searchRec.Code)

	var searchResp struct {
		Data struct {
			Results []struct {
				DocumentID string `json:"document_id"`
			} `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(searchRec.Body).Decode(&searchResp))
	require.NotEmpty(t, searchResp.Data.Results)
	assert.Equal(t, ingestResp.Data.DocumentID, searchResp.Data.Results[0].DocumentID)
}
