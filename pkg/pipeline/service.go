package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/embeddings"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream/nop"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/ingest"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/llm"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/resilience"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/txn"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

const (
	// DefaultMinWordCount is the minimum normalized word count a note must
	// reach to be ingested.
	DefaultMinWordCount = 3

	// DefaultTopK is the default number of search hits used to answer a
	// query.
	DefaultTopK = 5

	// DefaultCacheSize bounds the idempotency cache.
	DefaultCacheSize = 256
)

// Config holds the pipeline's collaborators and tuning knobs.
type Config struct {
	// Vector is the document store. Required.
	Vector vector.Driver

	// Audit receives every operation's lifecycle entries. Required.
	Audit *audit.Logger

	// Embedder converts note content and queries into vectors. Required.
	Embedder embeddings.Embedder

	// Completer answers queries over retrieved context. Required.
	Completer llm.Completer

	// Storage backs file checkpoints during transactions. Optional.
	Storage storage.Driver

	// Events receives operation lifecycle events. Defaults to the no-op
	// publisher.
	Events eventstream.Publisher

	// Logger receives pipeline logs.
	Logger *slog.Logger

	// StripFrontMatter removes YAML front-matter during normalization.
	StripFrontMatter bool

	// MinWordCount rejects notes whose normalized content is shorter.
	// Defaults to DefaultMinWordCount.
	MinWordCount int

	// TopK is the default search width for queries. Defaults to
	// DefaultTopK.
	TopK int

	// MinScore is the default similarity floor for query hits.
	MinScore float32

	// MaxRetries is the total number of provider call attempts, including
	// the first. Defaults to 3.
	MaxRetries int

	// BackoffMs is the initial retry backoff in milliseconds; growth is
	// exponential (BackoffMs * 2^attempt). Defaults to 100.
	BackoffMs int

	// RetryableErrors optionally restricts retries to errors matching one
	// of these substrings.
	RetryableErrors []string

	// FailureThreshold trips the provider circuit breakers. Defaults to 5.
	FailureThreshold int

	// BreakerTimeout is how long a tripped breaker stays open. Defaults
	// to 30s.
	BreakerTimeout time.Duration

	// CacheSize bounds the idempotency cache. Defaults to
	// DefaultCacheSize.
	CacheSize int
}

// Service exposes the audited, idempotent, retryable pipeline operations.
type Service struct {
	vectors   vector.Driver
	auditLog  *audit.Logger
	txns      *txn.Manager
	embedder  embeddings.Embedder
	completer llm.Completer
	events    eventstream.Publisher
	logger    *slog.Logger

	embedClient    *resilience.Client
	completeClient *resilience.Client

	cache *resultCache

	stripFrontMatter bool
	minWordCount     int
	topK             int
	minScore         float32
}

// NewService creates the pipeline service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Vector == nil {
		return nil, errors.New("vector driver is required")
	}
	if cfg.Audit == nil {
		return nil, errors.New("audit logger is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	events := cfg.Events
	if events == nil {
		events = nop.NewPublisher()
	}

	minWords := cfg.MinWordCount
	if minWords <= 0 {
		minWords = DefaultMinWordCount
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	txns, err := txn.NewManager(txn.Config{
		Audit:   cfg.Audit,
		Vector:  cfg.Vector,
		Storage: cfg.Storage,
		Logger:  lg,
	})
	if err != nil {
		return nil, fmt.Errorf("building transaction manager: %w", err)
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:     cfg.MaxRetries,
		InitialDelay:    time.Duration(cfg.BackoffMs) * time.Millisecond,
		RetryableErrors: cfg.RetryableErrors,
		Logger:          lg,
	}

	newClient := func(name string) *resilience.Client {
		return resilience.NewClient(
			resilience.NewBreaker(resilience.BreakerConfig{
				Name:             name,
				FailureThreshold: cfg.FailureThreshold,
				Timeout:          cfg.BreakerTimeout,
				Logger:           lg,
			}),
			resilience.NewRetryPolicy(retryCfg),
		)
	}

	return &Service{
		vectors:          cfg.Vector,
		auditLog:         cfg.Audit,
		txns:             txns,
		embedder:         cfg.Embedder,
		completer:        cfg.Completer,
		events:           events,
		logger:           lg,
		embedClient:      newClient("embedding"),
		completeClient:   newClient("completion"),
		cache:            newResultCache(cacheSize),
		stripFrontMatter: cfg.StripFrontMatter,
		minWordCount:     minWords,
		topK:             topK,
		minScore:         cfg.MinScore,
	}, nil
}

// IngestNote normalizes a raw note and audits the attempt. Notes whose
// normalized content falls below the word count floor fail validation.
func (s *Service) IngestNote(ctx context.Context, note NoteInput, idempotencyKey string) IngestResult {
	if cached, ok := s.cache.get(idempotencyKey); ok {
		if r, ok := cached.(IngestResult); ok {
			return r
		}
	}

	opID := s.auditLog.NewOperationID()
	s.start(ctx, opID, audit.OpIngest, map[string]any{"note_id": note.ID})

	normalized, err := s.normalize(note)
	if err != nil {
		return s.failIngest(ctx, opID, note.ID, err, idempotencyKey)
	}

	s.complete(ctx, opID, audit.OpIngest, map[string]any{
		"note_id":    note.ID,
		"word_count": normalized.WordCount,
		"tags":       normalized.Tags,
	}, nil)

	result := IngestResult{
		OperationID: opID,
		Success:     true,
		NoteID:      note.ID,
		Content:     normalized.Content,
		WordCount:   normalized.WordCount,
		Tags:        normalized.Tags,
	}
	s.cache.put(idempotencyKey, result)

	return result
}

// IndexNote normalizes, embeds and stores a note as one transactional,
// rollback-able operation.
func (s *Service) IndexNote(ctx context.Context, note NoteInput, idempotencyKey string) IndexResult {
	if cached, ok := s.cache.get(idempotencyKey); ok {
		if r, ok := cached.(IndexResult); ok {
			return r
		}
	}

	opID := s.auditLog.NewOperationID()
	s.start(ctx, opID, audit.OpIndex, map[string]any{"note_id": note.ID})

	normalized, err := s.normalize(note)
	if err != nil {
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	embedded, err := s.embed(ctx, normalized.Content)
	if err != nil {
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	// Capture the pre-operation state before any mutation.
	var previous any
	if prev, err := s.vectors.Get(ctx, note.ID); err == nil {
		previous = prev
	} else if !errors.Is(err, vector.ErrNotFound) {
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	if _, err := s.txns.Begin(opID, audit.OpIndex); err != nil {
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}
	if err := s.txns.Checkpoint(opID, txn.CheckpointVector, note.ID, previous); err != nil {
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	doc := vector.Document{
		ID:       note.ID,
		Vector:   embedded.Vector,
		Metadata: buildMetadata(note, normalized),
		Content:  normalized.Content,
	}

	if err := s.applyIndex(ctx, doc); err != nil {
		if rbErr := s.txns.Rollback(ctx, opID); rbErr != nil {
			s.logger.Error("rollback after failed index", "operation_id", opID, "error", rbErr)
		}
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	if err := s.txns.Commit(ctx, opID, map[string]any{
		"note_id":     note.ID,
		"dimensions":  len(doc.Vector),
		"word_count":  normalized.WordCount,
		"tokens_used": embedded.TokensUsed,
	}); err != nil {
		if rbErr := s.txns.Rollback(ctx, opID); rbErr != nil {
			s.logger.Error("rollback after failed commit", "operation_id", opID, "error", rbErr)
		}
		return s.failIndex(ctx, opID, note.ID, err, idempotencyKey)
	}

	s.publish(ctx, eventstream.EventTypeOperationCompleted, opID, audit.OpIndex, note.ID, map[string]any{
		"dimensions": len(doc.Vector),
	})

	result := IndexResult{
		OperationID: opID,
		Success:     true,
		NoteID:      note.ID,
		Dimensions:  len(doc.Vector),
		TokensUsed:  embedded.TokensUsed,
	}
	s.cache.put(idempotencyKey, result)

	return result
}

// QueryAgent embeds the query, retrieves evidence and has the completion
// provider answer with citations. Zero hits is a successful outcome with a
// suggested next action, not an error.
func (s *Service) QueryAgent(ctx context.Context, query string, opts QueryOptions) QueryResult {
	opID := s.auditLog.NewOperationID()
	s.start(ctx, opID, audit.OpQuery, map[string]any{"query": query})

	if len(query) == 0 {
		return s.failQuery(ctx, opID, query, &ValidationError{Reason: "query must not be empty"})
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = s.minScore
	}

	embedded, err := s.embed(ctx, query)
	if err != nil {
		return s.failQuery(ctx, opID, query, err)
	}

	hits, err := s.vectors.Search(ctx, embedded.Vector, topK, minScore)
	if err != nil {
		return s.failQuery(ctx, opID, query, err)
	}

	if len(hits) == 0 {
		s.complete(ctx, opID, audit.OpQuery, map[string]any{"query": query, "results": 0}, nil)
		return QueryResult{
			OperationID:       opID,
			Success:           true,
			Answer:            "No indexed notes matched this query.",
			Confidence:        0,
			RecommendedAction: noResultsAction,
			Evidence:          Evidence{Sources: []Source{}},
		}
	}

	var answer llm.Result
	err = s.completeClient.Do(ctx, func(ctx context.Context) error {
		var callErr error
		answer, callErr = s.completer.Complete(ctx, buildPrompt(query, hits))
		return callErr
	})
	if err != nil {
		return s.failQuery(ctx, opID, query, err)
	}

	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, Source{
			NoteID:  hit.ID,
			Score:   hit.Score,
			Snippet: snippet(hit.Content, 200),
		})
	}

	s.complete(ctx, opID, audit.OpQuery, map[string]any{
		"query":   query,
		"results": len(hits),
	}, nil)

	return QueryResult{
		OperationID:       opID,
		Success:           true,
		Answer:            answer.Text,
		Confidence:        scoreConfidence(hits[0].Score, len(hits), answer.Text),
		RecommendedAction: extractRecommendedAction(answer.Text),
		Evidence:          Evidence{Sources: sources},
		TokensUsed:        answer.TokensUsed + embedded.TokensUsed,
	}
}

// QueryOptions tunes a single query.
type QueryOptions struct {
	// TopK overrides the configured search width when positive.
	TopK int

	// MinScore overrides the configured similarity floor when non-zero.
	MinScore float32
}

// RollbackOperation restores the state a committed operation overwrote,
// then records the rollback in the audit trail.
func (s *Service) RollbackOperation(ctx context.Context, operationID string) RollbackResult {
	if err := s.txns.Rollback(ctx, operationID); err != nil {
		return RollbackResult{OperationID: operationID, Error: err.Error()}
	}

	s.publish(ctx, eventstream.EventTypeOperationRolledBack, operationID, audit.OpRollback, "", nil)

	return RollbackResult{OperationID: operationID, Success: true}
}

// DeleteNote removes a note from the vector store as a rollback-able
// operation. Deleting an absent note succeeds without mutating anything.
func (s *Service) DeleteNote(ctx context.Context, noteID string) DeleteResult {
	opID := s.auditLog.NewOperationID()
	s.start(ctx, opID, audit.OpDelete, map[string]any{"note_id": noteID})

	prev, err := s.vectors.Get(ctx, noteID)
	if errors.Is(err, vector.ErrNotFound) {
		s.complete(ctx, opID, audit.OpDelete, map[string]any{"note_id": noteID, "deleted": false}, nil)
		return DeleteResult{OperationID: opID, Success: true, NoteID: noteID}
	}
	if err != nil {
		return s.failDelete(ctx, opID, noteID, err)
	}

	if _, err := s.txns.Begin(opID, audit.OpDelete); err != nil {
		return s.failDelete(ctx, opID, noteID, err)
	}
	if err := s.txns.Checkpoint(opID, txn.CheckpointVector, noteID, prev); err != nil {
		return s.failDelete(ctx, opID, noteID, err)
	}

	if err := s.applyDelete(ctx, noteID); err != nil {
		if rbErr := s.txns.Rollback(ctx, opID); rbErr != nil {
			s.logger.Error("rollback after failed delete", "operation_id", opID, "error", rbErr)
		}
		return s.failDelete(ctx, opID, noteID, err)
	}

	if err := s.txns.Commit(ctx, opID, map[string]any{"note_id": noteID, "deleted": true}); err != nil {
		return s.failDelete(ctx, opID, noteID, err)
	}

	s.publish(ctx, eventstream.EventTypeOperationCompleted, opID, audit.OpDelete, noteID, nil)

	return DeleteResult{OperationID: opID, Success: true, NoteID: noteID, Deleted: true}
}

// EmbedderStats and CompleterStats expose the provider breakers' state.
func (s *Service) EmbedderStats() resilience.BreakerStats { return s.embedClient.Stats() }

// CompleterStats exposes the completion breaker's state.
func (s *Service) CompleterStats() resilience.BreakerStats { return s.completeClient.Stats() }

// Cleanup force-rolls-back any transaction left open, e.g. after a crash.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.txns.Cleanup(ctx)
}

// Playbook derives a manual recovery plan for an operation.
func (s *Service) Playbook(operationID string) (*txn.Playbook, error) {
	return s.txns.CreatePlaybook(operationID)
}

// Close releases the provider clients and publisher.
func (s *Service) Close() error {
	var errs []error

	if err := s.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.completer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.events.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Service) normalize(note NoteInput) (ingest.Note, error) {
	if note.ID == "" {
		return ingest.Note{}, &ValidationError{Reason: "note id must not be empty"}
	}

	normalized, err := ingest.Normalize(note.Content, ingest.Options{
		StripFrontMatter: s.stripFrontMatter,
	})
	if err != nil {
		return ingest.Note{}, &ValidationError{Reason: err.Error()}
	}

	if normalized.WordCount < s.minWordCount {
		return ingest.Note{}, &ValidationError{
			Reason: fmt.Sprintf("content has %d words, need at least %d", normalized.WordCount, s.minWordCount),
		}
	}

	return normalized, nil
}

func (s *Service) embed(ctx context.Context, text string) (embeddings.Result, error) {
	var result embeddings.Result

	err := s.embedClient.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = s.embedder.Embed(ctx, text)
		return callErr
	})

	return result, err
}

// applyIndex performs the store mutation an index transaction wraps.
func (s *Service) applyIndex(ctx context.Context, doc vector.Document) error {
	if err := s.vectors.Add(ctx, doc); err != nil {
		return fmt.Errorf("adding document: %w", err)
	}
	if err := s.vectors.Save(ctx); err != nil {
		return fmt.Errorf("persisting vector store: %w", err)
	}
	return nil
}

func (s *Service) applyDelete(ctx context.Context, noteID string) error {
	if err := s.vectors.Remove(ctx, noteID); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}
	if err := s.vectors.Save(ctx); err != nil {
		return fmt.Errorf("persisting vector store: %w", err)
	}
	return nil
}

func buildMetadata(note NoteInput, normalized ingest.Note) map[string]any {
	meta := make(map[string]any, len(note.Metadata)+2)
	for k, v := range note.Metadata {
		meta[k] = v
	}
	if len(normalized.Tags) > 0 {
		meta["tags"] = normalized.Tags
	}
	meta["word_count"] = normalized.WordCount

	return meta
}

func (s *Service) start(ctx context.Context, opID string, op audit.Operation, details map[string]any) {
	if err := s.auditLog.Start(ctx, opID, op, details); err != nil {
		s.logger.Error("recording operation start", "operation_id", opID, "error", err)
	}
}

func (s *Service) complete(ctx context.Context, opID string, op audit.Operation, details map[string]any, meta *audit.RollbackMetadata) {
	if err := s.auditLog.Complete(ctx, opID, op, details, meta); err != nil {
		s.logger.Error("recording operation completion", "operation_id", opID, "error", err)
	}
}

func (s *Service) fail(ctx context.Context, opID string, op audit.Operation, details map[string]any, opErr error) {
	if err := s.auditLog.Fail(ctx, opID, op, details, opErr.Error()); err != nil {
		s.logger.Error("recording operation failure", "operation_id", opID, "error", err)
	}

	s.publish(ctx, eventstream.EventTypeOperationFailed, opID, op, "", map[string]any{
		"error": opErr.Error(),
	})
}

func (s *Service) failIngest(ctx context.Context, opID, noteID string, err error, key string) IngestResult {
	s.fail(ctx, opID, audit.OpIngest, map[string]any{"note_id": noteID}, err)

	result := IngestResult{OperationID: opID, NoteID: noteID, Error: err.Error()}
	s.cache.put(key, result)

	return result
}

func (s *Service) failIndex(ctx context.Context, opID, noteID string, err error, key string) IndexResult {
	s.fail(ctx, opID, audit.OpIndex, map[string]any{"note_id": noteID}, err)

	result := IndexResult{OperationID: opID, NoteID: noteID, Error: err.Error()}
	s.cache.put(key, result)

	return result
}

func (s *Service) failQuery(ctx context.Context, opID, query string, err error) QueryResult {
	s.fail(ctx, opID, audit.OpQuery, map[string]any{"query": query}, err)
	return QueryResult{OperationID: opID, Error: err.Error(), Evidence: Evidence{Sources: []Source{}}}
}

func (s *Service) failDelete(ctx context.Context, opID, noteID string, err error) DeleteResult {
	s.fail(ctx, opID, audit.OpDelete, map[string]any{"note_id": noteID}, err)
	return DeleteResult{OperationID: opID, NoteID: noteID, Error: err.Error()}
}

func (s *Service) publish(ctx context.Context, eventType, opID string, op audit.Operation, noteID string, details map[string]any) {
	event := &eventstream.OperationEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		OperationID:   opID,
		Operation:     string(op),
		NoteID:        noteID,
		Details:       details,
	}

	if err := s.events.PublishOperation(ctx, event); err != nil {
		s.logger.Warn("publishing operation event", "operation_id", opID, "error", err)
	}
}
