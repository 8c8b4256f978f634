// Package start assembles a running obsagent system from resolved
// configuration: the storage sandbox, audit log, vector store, providers, and
// the pipeline service on top of them. CLI commands and the API server both
// bootstrap through here so the wiring lives in one place.
package start

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/dotdir"
	embeddingutils "github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings/utils"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream/kafka"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream/nop"
	llmutils "github.com/B0LK13/obsidian-agent-sub005/pkg/llm/utils"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage/local"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
	vectorutils "github.com/B0LK13/obsidian-agent-sub005/pkg/vector/utils"
)

// Manager resolves the obsagent directory and builds the component graph from
// a viper config.
type Manager struct {
	// Dir is the resolved .obsagent/ directory.
	Dir string

	v      *viper.Viper
	logger *slog.Logger
}

// System is a fully-wired obsagent instance.
type System struct {
	Service *pipeline.Service
	Audit   *audit.Logger
	Storage storage.Driver
	Vector  vector.Driver

	// VaultDir is the directory file operations are sandboxed to.
	VaultDir string
}

func NewManager(configDir string, v *viper.Viper, lg *slog.Logger) (*Manager, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(configDir)
	if err != nil {
		return nil, err
	}

	if lg == nil {
		lg = logger.Nop()
	}

	return &Manager{
		Dir:    dir,
		v:      v,
		logger: lg,
	}, nil
}

// VaultDir returns the configured vault path, falling back to the .obsagent/
// directory itself.
func (m *Manager) VaultDir() string {
	if vault := m.v.GetString("storage.vault_path"); vault != "" {
		return vault
	}
	return m.Dir
}

// Build wires up the storage driver, audit log, vector store, providers, and
// pipeline service. The caller owns the returned System and must Close it.
func (m *Manager) Build(ctx context.Context) (*System, error) {
	vault := m.VaultDir()

	store, err := local.NewDriver(vault)
	if err != nil {
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}

	auditLog, err := audit.NewLogger(audit.Config{
		Storage:       store,
		LogPath:       m.v.GetString("audit.log_path"),
		MaxOperations: m.v.GetInt("audit.max_operations"),
		Logger:        m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	vec, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: m.v.GetString("vector_store.provider"),
		Storage:      store,
		SnapshotPath: m.v.GetString("vector_store.snapshot_path"),
		SQLitePath:   m.v.GetString("vector_store.target"),
		Dimensions:   m.v.GetUint("embedding.dimensions"),
		Logger:       m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	// Restore the previous process's snapshot so indexed notes survive
	// restarts. Backends without snapshots treat this as a no-op.
	if err := vec.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading vector snapshot: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: m.v.GetString("embedding.provider"),
		TargetURL:    m.v.GetString("embedding.target"),
		Model:        m.v.GetString("embedding.model"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	completer, err := llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: m.v.GetString("completion.provider"),
		TargetURL:    m.v.GetString("completion.target"),
		Model:        m.v.GetString("completion.model"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating completer: %w", err)
	}

	events, err := m.newPublisher()
	if err != nil {
		return nil, err
	}

	svc, err := pipeline.NewService(pipeline.Config{
		Vector:           vec,
		Audit:            auditLog,
		Embedder:         embedder,
		Completer:        completer,
		Storage:          store,
		Events:           events,
		Logger:           m.logger,
		StripFrontMatter: m.v.GetBool("pipeline.strip_front_matter"),
		MinWordCount:     m.v.GetInt("pipeline.min_word_count"),
		TopK:             m.v.GetInt("pipeline.top_k"),
		MinScore:         float32(m.v.GetFloat64("pipeline.min_score")),
		MaxRetries:       m.v.GetInt("resilience.max_retries"),
		BackoffMs:        m.v.GetInt("resilience.backoff_ms"),
		RetryableErrors:  m.v.GetStringSlice("resilience.retryable_errors"),
		FailureThreshold: m.v.GetInt("resilience.failure_threshold"),
		BreakerTimeout:   time.Duration(m.v.GetInt("resilience.breaker_timeout_sec")) * time.Second,
		CacheSize:        m.v.GetInt("pipeline.cache_size"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline service: %w", err)
	}

	return &System{
		Service:  svc,
		Audit:    auditLog,
		Storage:  store,
		Vector:   vec,
		VaultDir: vault,
	}, nil
}

func (m *Manager) newPublisher() (eventstream.Publisher, error) {
	if !m.v.GetBool("eventstream.enabled") {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: m.v.GetStringSlice("eventstream.brokers"),
		Topic:   m.v.GetString("eventstream.topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	m.logger.Info("publishing operation events",
		slog.Any("brokers", m.v.GetStringSlice("eventstream.brokers")),
		slog.String("topic", m.v.GetString("eventstream.topic")),
	)

	return pub, nil
}

// Close releases every component the System holds.
func (s *System) Close() error {
	if s == nil {
		return nil
	}

	var errs []error
	if err := s.Service.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Vector.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
