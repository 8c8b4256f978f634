package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent obsagent configuration stored as
// config.toml in the .obsagent/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Completion  CompletionConfig  `toml:"completion"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Resilience  ResilienceConfig  `toml:"resilience"`
	Audit       AuditConfig       `toml:"audit"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig holds the vault sandbox settings.
type StorageConfig struct {
	// VaultPath is the note directory every file operation is sandboxed to.
	VaultPath string `toml:"vault_path,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider     string `toml:"provider,omitempty"`
	Target       string `toml:"target,omitempty"`
	SnapshotPath string `toml:"snapshot_path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// CompletionConfig holds completion provider settings.
type CompletionConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// PipelineConfig holds pipeline tuning settings.
type PipelineConfig struct {
	MinWordCount     int     `toml:"min_word_count,omitempty"`
	StripFrontMatter bool    `toml:"strip_front_matter,omitempty"`
	TopK             int     `toml:"top_k,omitempty"`
	MinScore         float64 `toml:"min_score,omitempty"`
	CacheSize        int     `toml:"cache_size,omitempty"`
}

// ResilienceConfig holds retry and circuit breaker settings.
type ResilienceConfig struct {
	MaxRetries        int `toml:"max_retries,omitempty"`
	BackoffMs         int `toml:"backoff_ms,omitempty"`
	FailureThreshold  int `toml:"failure_threshold,omitempty"`
	BreakerTimeoutSec int `toml:"breaker_timeout_sec,omitempty"`

	// RetryableErrors restricts provider retries to errors containing one of
	// these substrings. Empty retries everything.
	RetryableErrors []string `toml:"retryable_errors,omitempty"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	LogPath       string `toml:"log_path,omitempty"`
	MaxOperations int    `toml:"max_operations,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds operation event publishing settings.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.vault_path": {
		get: func(c *Config) string { return c.Storage.VaultPath },
		set: func(c *Config, v string) error { c.Storage.VaultPath = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.snapshot_path": {
		get: func(c *Config) string { return c.VectorStore.SnapshotPath },
		set: func(c *Config, v string) error { c.VectorStore.SnapshotPath = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"completion.provider": {
		get: func(c *Config) string { return c.Completion.Provider },
		set: func(c *Config, v string) error { c.Completion.Provider = v; return nil },
	},
	"completion.target": {
		get: func(c *Config) string { return c.Completion.Target },
		set: func(c *Config, v string) error { c.Completion.Target = v; return nil },
	},
	"completion.model": {
		get: func(c *Config) string { return c.Completion.Model },
		set: func(c *Config, v string) error { c.Completion.Model = v; return nil },
	},
	"pipeline.min_word_count": {
		get: func(c *Config) string { return strconv.Itoa(c.Pipeline.MinWordCount) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for pipeline.min_word_count: %w", err)
			}
			c.Pipeline.MinWordCount = n
			return nil
		},
	},
	"pipeline.strip_front_matter": {
		get: func(c *Config) string { return strconv.FormatBool(c.Pipeline.StripFrontMatter) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for pipeline.strip_front_matter: %w", err)
			}
			c.Pipeline.StripFrontMatter = b
			return nil
		},
	},
	"pipeline.top_k": {
		get: func(c *Config) string { return strconv.Itoa(c.Pipeline.TopK) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for pipeline.top_k: %w", err)
			}
			c.Pipeline.TopK = n
			return nil
		},
	},
	"resilience.max_retries": {
		get: func(c *Config) string { return strconv.Itoa(c.Resilience.MaxRetries) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for resilience.max_retries: %w", err)
			}
			c.Resilience.MaxRetries = n
			return nil
		},
	},
	"resilience.backoff_ms": {
		get: func(c *Config) string { return strconv.Itoa(c.Resilience.BackoffMs) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for resilience.backoff_ms: %w", err)
			}
			c.Resilience.BackoffMs = n
			return nil
		},
	},
	"audit.log_path": {
		get: func(c *Config) string { return c.Audit.LogPath },
		set: func(c *Config, v string) error { c.Audit.LogPath = v; return nil },
	},
	"audit.max_operations": {
		get: func(c *Config) string { return strconv.Itoa(c.Audit.MaxOperations) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for audit.max_operations: %w", err)
			}
			c.Audit.MaxOperations = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"eventstream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for eventstream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
