package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"orion/internal/orierr"
)

// knownDimensions mirrors the model-to-dimension map the original
// service hardcodes for its supported Cohere models.
var knownDimensions = map[string]int{
	"embed-english-v3.0":        1024,
	"embed-multilingual-v3.0":   1024,
	"embed-english-light-v3.0":  384,
}

// CohereClient is the default EmbeddingService binding: an HTTP client
// against Cohere's embed endpoint, the concrete provider behind
// spec §4.5's "a 1024-dimension English embedding model".
type CohereClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	concurrency int
}

const defaultCohereBaseURL = "https://api.cohere.com/v1/embed"

// NewCohereClient builds a client. concurrency is stored on the client
// but Embed does not use it: Embed sends each batch as a single HTTP
// call and does not shard it.
func NewCohereClient(apiKey string, concurrency int) *CohereClient {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &CohereClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
		baseURL:     defaultCohereBaseURL,
		concurrency: concurrency,
	}
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message"`
}

// Embed sends one batch per call to the provider. The Embed pipeline
// step is responsible for partitioning the full chunk list into
// batches of at most `batch_size`; within a single call here the
// request is sent as one HTTP call since Cohere's embed endpoint
// itself accepts a batch of texts natively.
func (c *CohereClient) Embed(ctx context.Context, texts []string, model string) ([]Vector, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no api key configured: %w", orierr.ErrAuth)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody, err := json.Marshal(cohereEmbedRequest{Texts: texts, Model: model, InputType: "search_document"})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "embedding request failed", "error", err)
		return nil, fmt.Errorf("embed request: %w: %w", orierr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("cohere auth rejected: %w", orierr.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("cohere transient error %d: %w", resp.StatusCode, orierr.ErrProviderUnavailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("cohere rejected request %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), orierr.ErrInvalidResponse)
	}

	var parsed cohereEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w: %w", orierr.ErrInvalidResponse, err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(parsed.Embeddings), orierr.ErrInvalidResponse)
	}

	out := make([]Vector, len(parsed.Embeddings))
	for i, v := range parsed.Embeddings {
		out[i] = v
	}
	return out, nil
}

// SetBaseURL overrides the embed endpoint, for a self-hosted proxy or
// a test stub standing in for the public API.
func (c *CohereClient) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *CohereClient) Dimension(model string) (int, bool) {
	d, ok := knownDimensions[model]
	return d, ok
}

// embedConcurrently fans chunk-level embed calls for a single text out
// across a bounded worker group, writing into a pre-sized slice
// indexed by position so the caller's order guarantee holds
// regardless of completion order. Providers whose API is per-item
// (such as the Gemini adapter) use this to satisfy the batched
// contract; Cohere's native batch endpoint does not need it.
func embedConcurrently(ctx context.Context, concurrency int, texts []string, one func(context.Context, string) (Vector, error)) ([]Vector, error) {
	out := make([]Vector, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			v, err := one(gctx, text)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
