// Package llmutils is the llm utility package
package llmutils

import (
	"fmt"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/llm"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/llm/provider/ollama"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/llm/provider/openai"
)

type NewCompleterOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.New(openai.Config{
			APIKey:  o.APIKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", o.ProviderType)
	}
}
