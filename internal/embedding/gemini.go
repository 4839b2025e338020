package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"orion/internal/orierr"
)

// GeminiClient is the alternate EmbeddingService binding, selected via
// EMBEDDING_PROVIDER=gemini. Gemini's embedding API embeds one text per
// call, so the batched contract is satisfied by fanning calls out
// concurrently rather than by a native batch endpoint.
type GeminiClient struct {
	client      *genai.Client
	concurrency int
}

func NewGeminiClient(ctx context.Context, apiKey string, concurrency int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &GeminiClient{client: client, concurrency: concurrency}, nil
}

func (g *GeminiClient) Embed(ctx context.Context, texts []string, model string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(model)
	return embedConcurrently(ctx, g.concurrency, texts, func(ctx context.Context, text string) (Vector, error) {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			slog.ErrorContext(ctx, "gemini embed failed", "error", err)
			return nil, fmt.Errorf("gemini embed: %w: %w", orierr.ErrProviderUnavailable, err)
		}
		if res.Embedding == nil {
			return nil, fmt.Errorf("gemini returned no embedding: %w", orierr.ErrInvalidResponse)
		}
		return res.Embedding.Values, nil
	})
}

var geminiDimensions = map[string]int{
	"gemini-embedding-001": 3072,
}

func (g *GeminiClient) Dimension(model string) (int, bool) {
	d, ok := geminiDimensions[model]
	return d, ok
}
