package config

const (
	defaultProvider  = "ollama"
	defaultTarget    = "http://localhost:11434"
	defaultAPIListen = ":8090"

	defaultVectorProvider = "memory"
	defaultSnapshotPath   = "vector-store.json"

	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultCompletionModel = "llama3.2"

	defaultMinWordCount = 3
	defaultTopK         = 5
	defaultCacheSize    = 256

	defaultMaxRetries        = 3
	defaultBackoffMs         = 100
	defaultFailureThreshold  = 5
	defaultBreakerTimeoutSec = 30

	defaultAuditLogPath = "audit-log.json"

	defaultEventTopic = "obsagent.operations"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider:     defaultVectorProvider,
			SnapshotPath: defaultSnapshotPath,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultProvider,
			Target:     defaultTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Completion: CompletionConfig{
			Provider: defaultProvider,
			Target:   defaultTarget,
			Model:    defaultCompletionModel,
		},
		Pipeline: PipelineConfig{
			MinWordCount: defaultMinWordCount,
			TopK:         defaultTopK,
			CacheSize:    defaultCacheSize,
		},
		Resilience: ResilienceConfig{
			MaxRetries:        defaultMaxRetries,
			BackoffMs:         defaultBackoffMs,
			FailureThreshold:  defaultFailureThreshold,
			BreakerTimeoutSec: defaultBreakerTimeoutSec,
		},
		Audit: AuditConfig{
			LogPath: defaultAuditLogPath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}
