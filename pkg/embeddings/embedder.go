// Package embeddings
package embeddings

import "context"

// Result is the outcome of embedding one text.
type Result struct {
	// Vector is the embedding of the input text.
	Vector []float32

	// TokensUsed is the provider-reported token count for the call, or 0
	// when the provider does not report usage.
	TokensUsed int
}

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) (Result, error)

	// Close releases any resources held by the embedder.
	Close() error
}
