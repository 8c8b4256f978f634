// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings/ollama"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:  o.APIKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
