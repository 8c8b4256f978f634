package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailuresRemaining makes the next N calls fail regardless of input,
	// simulating a transient provider outage.
	FailuresRemaining int

	mu    sync.Mutex
	calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) (embeddings.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.FailuresRemaining > 0 {
		m.FailuresRemaining--
		return embeddings.Result{}, fmt.Errorf("mock embedding timeout for: %s", text)
	}

	if m.FailOn != "" && text == m.FailOn {
		return embeddings.Result{}, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return embeddings.Result{Vector: emb, TokensUsed: len(text)}, nil
	}

	// Return a default embedding for any text
	return embeddings.Result{Vector: []float32{0.1, 0.2, 0.3}, TokensUsed: len(text)}, nil
}

// Calls reports how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
