package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the OBSAGENT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (OBSAGENT_API_LISTEN, OBSAGENT_EMBEDDING_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: OBSAGENT_API_LISTEN, OBSAGENT_STORAGE_VAULT_PATH, etc.
	v.SetEnvPrefix("OBSAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.vault_path", d.Storage.VaultPath)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.snapshot_path", d.VectorStore.SnapshotPath)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Completion
	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.target", d.Completion.Target)
	v.SetDefault("completion.model", d.Completion.Model)

	// Pipeline
	v.SetDefault("pipeline.min_word_count", d.Pipeline.MinWordCount)
	v.SetDefault("pipeline.strip_front_matter", d.Pipeline.StripFrontMatter)
	v.SetDefault("pipeline.top_k", d.Pipeline.TopK)
	v.SetDefault("pipeline.min_score", d.Pipeline.MinScore)
	v.SetDefault("pipeline.cache_size", d.Pipeline.CacheSize)

	// Resilience
	v.SetDefault("resilience.max_retries", d.Resilience.MaxRetries)
	v.SetDefault("resilience.backoff_ms", d.Resilience.BackoffMs)
	v.SetDefault("resilience.failure_threshold", d.Resilience.FailureThreshold)
	v.SetDefault("resilience.breaker_timeout_sec", d.Resilience.BreakerTimeoutSec)
	v.SetDefault("resilience.retryable_errors", d.Resilience.RetryableErrors)

	// Audit
	v.SetDefault("audit.log_path", d.Audit.LogPath)
	v.SetDefault("audit.max_operations", d.Audit.MaxOperations)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Event stream
	v.SetDefault("eventstream.enabled", d.EventStream.Enabled)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
