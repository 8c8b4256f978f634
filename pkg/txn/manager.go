package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/audit"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

// Config holds the transaction manager's collaborators.
type Config struct {
	// Audit receives completed and rollback entries. Required.
	Audit *audit.Logger

	// Vector is the store that vector/metadata checkpoints restore into.
	// Required.
	Vector vector.Driver

	// Storage restores file checkpoints. Optional; file checkpoints fail to
	// restore without it.
	Storage storage.Driver

	// Logger receives transaction lifecycle logs.
	Logger *slog.Logger
}

// Manager guarantees that a multi-step mutation either fully commits (and
// becomes auditable and rollback-able) or is fully unwound.
type Manager struct {
	auditLog *audit.Logger
	vectors  vector.Driver
	files    storage.Driver
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*Tx
}

// NewManager creates a transaction manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Audit == nil {
		return nil, errors.New("audit logger is required")
	}
	if cfg.Vector == nil {
		return nil, errors.New("vector driver is required")
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	return &Manager{
		auditLog: cfg.Audit,
		vectors:  cfg.Vector,
		files:    cfg.Storage,
		logger:   lg,
		active:   make(map[string]*Tx),
	}, nil
}

// Begin opens a transaction for the operation. Fails if one is already open
// for the same operation ID.
func (m *Manager) Begin(operationID string, op audit.Operation) (*Tx, error) {
	if operationID == "" {
		return nil, errors.New("operation ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[operationID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, operationID)
	}

	tx := &Tx{
		OperationID: operationID,
		Operation:   string(op),
		StartedAt:   time.Now(),
	}
	m.active[operationID] = tx

	m.logger.Debug("transaction started",
		"operation_id", operationID,
		"operation", string(op),
	)

	return tx, nil
}

// Checkpoint records the pre-mutation state of one entity. Must be called
// before the mutation is applied, for every mutated entity. No checkpoint
// may be created outside an open transaction.
func (m *Manager) Checkpoint(operationID string, typ CheckpointType, id string, previousState any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.active[operationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransaction, operationID)
	}
	if tx.committed {
		return fmt.Errorf("%w: %s", ErrAlreadyCommitted, operationID)
	}

	tx.checkpoints = append(tx.checkpoints, Checkpoint{
		Type:          typ,
		ID:            id,
		PreviousState: previousState,
		Timestamp:     time.Now().UnixMilli(),
	})

	return nil
}

// Commit converts the transaction's checkpoints into rollback metadata,
// writes the completed audit entry and closes the transaction. If audit
// persistence fails the transaction stays open and is NOT considered
// committed.
func (m *Manager) Commit(ctx context.Context, operationID string, details map[string]any) error {
	m.mu.Lock()
	tx, ok := m.active[operationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoTransaction, operationID)
	}
	if tx.committed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyCommitted, operationID)
	}
	checkpoints := append([]Checkpoint(nil), tx.checkpoints...)
	m.mu.Unlock()

	meta := buildRollbackMetadata(checkpoints)

	if err := m.auditLog.Complete(ctx, operationID, audit.Operation(tx.Operation), details, meta); err != nil {
		return fmt.Errorf("persisting audit entry for commit: %w", err)
	}

	m.mu.Lock()
	tx.committed = true
	delete(m.active, operationID)
	m.mu.Unlock()

	m.logger.Debug("transaction committed",
		"operation_id", operationID,
		"checkpoints", len(checkpoints),
	)

	return nil
}

// Rollback unwinds the operation's mutations. An open transaction replays
// its in-memory checkpoints; a committed one replays the rollback metadata
// persisted in the audit trail, then records a rollback audit entry.
func (m *Manager) Rollback(ctx context.Context, operationID string) error {
	m.mu.Lock()
	tx, open := m.active[operationID]
	if open {
		delete(m.active, operationID)
	}
	m.mu.Unlock()

	if open {
		if err := m.restore(ctx, tx.checkpoints); err != nil {
			return err
		}

		if err := m.auditLog.RecordRollback(ctx, operationID, map[string]any{
			"source":      "open_transaction",
			"checkpoints": len(tx.checkpoints),
		}); err != nil {
			return err
		}

		m.logger.Info("open transaction rolled back", "operation_id", operationID)
		return nil
	}

	cps, err := m.persistedCheckpoints(operationID)
	if err != nil {
		return err
	}

	if err := m.restore(ctx, cps); err != nil {
		return err
	}

	if err := m.auditLog.RecordRollback(ctx, operationID, map[string]any{
		"source":      "audit_trail",
		"checkpoints": len(cps),
	}); err != nil {
		return err
	}

	m.logger.Info("committed operation rolled back", "operation_id", operationID)
	return nil
}

// persistedCheckpoints loads the checkpoints embedded in the operation's
// completed audit entry.
func (m *Manager) persistedCheckpoints(operationID string) ([]Checkpoint, error) {
	entry, ok := m.auditLog.LastEntry(operationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, operationID)
	}

	if entry.Status != audit.StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRollbackable, operationID, entry.Status)
	}

	if entry.RollbackMetadata == nil || entry.RollbackMetadata.PreviousState == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRollbackMetadata, operationID)
	}

	return decodeCheckpoints(entry.RollbackMetadata.PreviousState)
}

// restore replays checkpoints in reverse insertion order: the most recent
// change is undone first so dependent state is unwound before its
// dependency. A failing restore propagates immediately; a half-completed
// rollback must be detectable by the caller.
func (m *Manager) restore(ctx context.Context, cps []Checkpoint) error {
	var touchedVectors bool

	for i := len(cps) - 1; i >= 0; i-- {
		cp := cps[i]

		switch cp.Type {
		case CheckpointVector, CheckpointMetadata:
			if err := m.restoreVector(ctx, cp); err != nil {
				return fmt.Errorf("restoring checkpoint %s/%s: %w", cp.Type, cp.ID, err)
			}
			touchedVectors = true

		case CheckpointFile:
			if err := m.restoreFile(ctx, cp); err != nil {
				return fmt.Errorf("restoring checkpoint %s/%s: %w", cp.Type, cp.ID, err)
			}

		default:
			return fmt.Errorf("unknown checkpoint type %q for %s", cp.Type, cp.ID)
		}
	}

	if touchedVectors {
		if err := m.vectors.Save(ctx); err != nil {
			return fmt.Errorf("persisting vector store after rollback: %w", err)
		}
	}

	return nil
}

func (m *Manager) restoreVector(ctx context.Context, cp Checkpoint) error {
	if cp.PreviousState == nil {
		// Entry did not exist before the operation.
		return m.vectors.Remove(ctx, cp.ID)
	}

	doc, err := decodeDocument(cp.PreviousState)
	if err != nil {
		return err
	}

	return m.vectors.Add(ctx, *doc)
}

func (m *Manager) restoreFile(ctx context.Context, cp Checkpoint) error {
	if m.files == nil {
		return errors.New("no storage driver configured for file checkpoints")
	}

	if cp.PreviousState == nil {
		return m.files.Remove(ctx, cp.ID)
	}

	content, ok := cp.PreviousState.(string)
	if !ok {
		return fmt.Errorf("file checkpoint previous state must be a string, got %T", cp.PreviousState)
	}

	return m.files.Write(ctx, cp.ID, []byte(content))
}

// Cleanup force-rolls-back every transaction left open (e.g., after a crash
// mid-operation) and returns the count cleaned.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Rollback(ctx, id); err != nil {
			return 0, fmt.Errorf("cleaning up transaction %s: %w", id, err)
		}
	}

	return len(ids), nil
}

// Open returns the number of in-flight transactions.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// buildRollbackMetadata groups checkpoints into the audit rollback metadata:
// file IDs into AffectedFiles, vector/metadata IDs into AffectedIndices, a
// recovery step per checkpoint, and the full checkpoint list as the previous
// state so rollback-from-audit replays exactly what was captured.
func buildRollbackMetadata(cps []Checkpoint) *audit.RollbackMetadata {
	if len(cps) == 0 {
		return nil
	}

	meta := &audit.RollbackMetadata{
		PreviousState: cps,
	}

	for _, cp := range cps {
		switch cp.Type {
		case CheckpointFile:
			meta.AffectedFiles = append(meta.AffectedFiles, cp.ID)
		default:
			meta.AffectedIndices = append(meta.AffectedIndices, cp.ID)
		}
		meta.RecoverySteps = append(meta.RecoverySteps, cp.describe())
	}

	return meta
}
