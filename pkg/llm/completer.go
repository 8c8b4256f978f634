// Package llm
package llm

import "context"

// Result is the outcome of one completion call.
type Result struct {
	// Text is the model's response.
	Text string

	// TokensUsed is the provider-reported total token count for the call,
	// or 0 when the provider does not report usage.
	TokensUsed int
}

// Completer provides text completion capabilities.
type Completer interface {
	// Complete sends a prompt to the model and returns its response.
	Complete(ctx context.Context, prompt string) (Result, error)

	// Close releases any resources held by the completer.
	Close() error
}
