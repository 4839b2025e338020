// Package embedding defines the EmbeddingService contract and its
// concrete provider bindings. Batched, stateless: embed(texts, model)
// returns vectors in request order with a declared common dimension.
package embedding

import "context"

// Vector is a fixed-dimension floating-point embedding.
type Vector []float32

// Service is the external collaborator contract of spec §4.8: a
// batched, stateless embedding call that preserves request-to-response
// order and declares a common dimension for the returned vectors.
type Service interface {
	// Embed embeds an ordered batch of texts under the named model.
	// Implementations must preserve order and return one vector per
	// input text.
	Embed(ctx context.Context, texts []string, model string) ([]Vector, error)
	// Dimension reports the vector dimension produced for model, when
	// known statically (providers may also infer it from a response).
	Dimension(model string) (int, bool)
}
