package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/llm"
)

// MockCompleter is a test completer that returns a canned answer
type MockCompleter struct {
	// Answer is returned for every prompt. Empty falls back to a default.
	Answer string

	// FailuresRemaining makes the next N calls fail, simulating a
	// transient provider outage.
	FailuresRemaining int

	mu      sync.Mutex
	calls   int
	prompts []string
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(_ context.Context, prompt string) (llm.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.prompts = append(m.prompts, prompt)

	if m.FailuresRemaining > 0 {
		m.FailuresRemaining--
		return llm.Result{}, fmt.Errorf("mock completion timeout")
	}

	answer := m.Answer
	if answer == "" {
		answer = "Based on [1], the answer is in the provided notes."
	}

	return llm.Result{Text: answer, TokensUsed: len(prompt)}, nil
}

// Calls reports how many times Complete was invoked.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *MockCompleter) Close() error {
	return nil
}

var _ llm.Completer = (*MockCompleter)(nil)
