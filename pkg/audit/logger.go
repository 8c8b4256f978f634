package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
)

// DefaultLogPath is the default audit log file name inside the storage
// sandbox.
const DefaultLogPath = "audit-log.json"

// Config holds configuration for the audit logger.
type Config struct {
	// Storage is the file-system adapter used for persistence. Required.
	Storage storage.Driver

	// LogPath is the audit log file path relative to the storage root.
	// Defaults to DefaultLogPath if empty.
	LogPath string

	// MaxOperations bounds how many operation groups are retained; the
	// oldest groups are pruned once the bound is exceeded. 0 means
	// unlimited.
	MaxOperations int

	// Logger receives error reports for persistence failures.
	Logger *slog.Logger
}

// Logger is the append-only audit log. Every mutating call triggers a full
// rewrite of the persisted document; acceptable write amplification for a
// local single-writer system.
type Logger struct {
	store   storage.Driver
	path    string
	maxOps  int
	logger  *slog.Logger
	nowFunc func() time.Time

	mu        sync.RWMutex
	order     []string           // operation IDs, oldest first
	entries   map[string][]Entry // operation ID -> entries, append order
	checksums map[string]string  // entry key -> checksum recorded at write time
	lastTS    int64
}

// IntegrityReport is the result of VerifyIntegrity.
type IntegrityReport struct {
	Valid           bool     `json:"valid"`
	TamperedEntries []string `json:"tampered_entries,omitempty"`
}

// Stats summarizes the audit log by operation outcome.
type Stats struct {
	TotalOperations      int `json:"total_operations"`
	CompletedOperations  int `json:"completed_operations"`
	FailedOperations     int `json:"failed_operations"`
	RolledBackOperations int `json:"rolled_back_operations"`
}

// QueryFilter narrows the entries returned by Query. Zero values match
// everything.
type QueryFilter struct {
	OperationID string
	Operation   Operation
	Status      Status
	Since       int64 // ms since epoch, inclusive
	Until       int64 // ms since epoch, inclusive
	Limit       int
}

// NewLogger creates an audit logger and loads any existing persisted log.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage driver is required")
	}

	path := cfg.LogPath
	if path == "" {
		path = DefaultLogPath
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	l := &Logger{
		store:     cfg.Storage,
		path:      path,
		maxOps:    cfg.MaxOperations,
		logger:    lg,
		nowFunc:   time.Now,
		order:     []string{},
		entries:   make(map[string][]Entry),
		checksums: make(map[string]string),
	}

	if err := l.Load(context.Background()); err != nil {
		return nil, err
	}

	return l, nil
}

// NewOperationID generates a fresh unique operation identifier.
func (l *Logger) NewOperationID() string {
	return uuid.NewString()
}

// Start appends a started entry for the operation.
func (l *Logger) Start(ctx context.Context, operationID string, op Operation, details map[string]any) error {
	return l.append(ctx, Entry{
		OperationID: operationID,
		Operation:   op,
		Status:      StatusStarted,
		Details:     details,
	})
}

// Complete appends a completed entry, optionally carrying the rollback
// metadata needed to undo the operation later.
func (l *Logger) Complete(ctx context.Context, operationID string, op Operation, details map[string]any, rollback *RollbackMetadata) error {
	return l.append(ctx, Entry{
		OperationID:      operationID,
		Operation:        op,
		Status:           StatusCompleted,
		Details:          details,
		RollbackMetadata: rollback,
	})
}

// Fail appends a failed entry recording the operation error.
func (l *Logger) Fail(ctx context.Context, operationID string, op Operation, details map[string]any, opErr string) error {
	return l.append(ctx, Entry{
		OperationID: operationID,
		Operation:   op,
		Status:      StatusFailed,
		Details:     details,
		Error:       opErr,
	})
}

// RecordRollback appends a rolled_back entry. It records that a rollback
// occurred; undoing state is the transaction manager's job.
func (l *Logger) RecordRollback(ctx context.Context, operationID string, details map[string]any) error {
	return l.append(ctx, Entry{
		OperationID: operationID,
		Operation:   OpRollback,
		Status:      StatusRolledBack,
		Details:     details,
	})
}

// append stamps, checksums, stores and persists one entry. On a persistence
// failure the in-memory model keeps the entry and the error is both logged
// and returned: the log is temporarily desynchronized from disk until the
// next successful save.
func (l *Logger) append(ctx context.Context, e Entry) error {
	if e.OperationID == "" {
		return errors.New("operation ID is required")
	}

	l.mu.Lock()

	e.Timestamp = l.nextTimestamp()

	sum, err := ComputeChecksum(e)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	e.Checksum = sum

	if _, ok := l.entries[e.OperationID]; !ok {
		l.order = append(l.order, e.OperationID)
	}
	l.entries[e.OperationID] = append(l.entries[e.OperationID], e)
	l.checksums[e.Key()] = sum

	l.pruneLocked()

	data, err := l.marshalLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if err := l.store.Write(ctx, l.path, data); err != nil {
		l.logger.Error("audit log persistence failed; in-memory log ahead of disk",
			"operation_id", e.OperationID,
			"status", string(e.Status),
			"error", err,
		)
		return err
	}

	return nil
}

// nextTimestamp returns a strictly increasing millisecond timestamp so entry
// keys never collide within one process. Callers must hold l.mu.
func (l *Logger) nextTimestamp() int64 {
	ts := l.nowFunc().UnixMilli()
	if ts <= l.lastTS {
		ts = l.lastTS + 1
	}
	l.lastTS = ts
	return ts
}

// Query returns entries matching the filter, sorted newest-first.
func (l *Logger) Query(filter QueryFilter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, id := range l.order {
		if filter.OperationID != "" && id != filter.OperationID {
			continue
		}
		for _, e := range l.entries[id] {
			if filter.Operation != "" && e.Operation != filter.Operation {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			if filter.Since != 0 && e.Timestamp < filter.Since {
				continue
			}
			if filter.Until != 0 && e.Timestamp > filter.Until {
				continue
			}
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out
}

// OperationHistory returns all entries for one operation in append order.
func (l *Logger) OperationHistory(operationID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.entries[operationID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// LastEntry returns the most recent entry for an operation, or false if the
// operation is unknown.
func (l *Logger) LastEntry(operationID string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.entries[operationID]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// VerifyIntegrity recomputes the checksum of every stored entry and compares
// it to both the entry's embedded checksum and the parallel checksum index.
// Mismatches are reported by entry key.
func (l *Logger) VerifyIntegrity() (IntegrityReport, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	report := IntegrityReport{Valid: true}

	for _, id := range l.order {
		for _, e := range l.entries[id] {
			sum, err := ComputeChecksum(e)
			if err != nil {
				return IntegrityReport{}, fmt.Errorf("recomputing checksum for %s: %w", e.Key(), err)
			}

			recorded, ok := l.checksums[e.Key()]
			if !ok || sum != e.Checksum || sum != recorded {
				report.Valid = false
				report.TamperedEntries = append(report.TamperedEntries, e.Key())
			}
		}
	}

	return report, nil
}

// Stats returns operation counts grouped by outcome. An operation counts
// toward each status it has reached.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{TotalOperations: len(l.order)}
	for _, id := range l.order {
		var completed, failed, rolledBack bool
		for _, e := range l.entries[id] {
			switch e.Status {
			case StatusCompleted:
				completed = true
			case StatusFailed:
				failed = true
			case StatusRolledBack:
				rolledBack = true
			}
		}
		if completed {
			s.CompletedOperations++
		}
		if failed {
			s.FailedOperations++
		}
		if rolledBack {
			s.RolledBackOperations++
		}
	}

	return s
}

// Clear removes every entry from the log, in memory and on disk.
func (l *Logger) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.order = []string{}
	l.entries = make(map[string][]Entry)
	l.checksums = make(map[string]string)
	data, err := l.marshalLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	return l.store.Write(ctx, l.path, data)
}

// Prune drops the oldest operation groups until at most max remain, then
// persists. Returns the number of groups dropped. max <= 0 is a no-op.
func (l *Logger) Prune(ctx context.Context, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	dropped := l.pruneTo(max)
	var data []byte
	var err error
	if dropped > 0 {
		data, err = l.marshalLocked()
	}
	l.mu.Unlock()

	if err != nil {
		return dropped, err
	}
	if dropped == 0 {
		return 0, nil
	}

	return dropped, l.store.Write(ctx, l.path, data)
}

// pruneLocked enforces the configured MaxOperations bound. Callers must hold
// l.mu.
func (l *Logger) pruneLocked() {
	if l.maxOps > 0 {
		l.pruneTo(l.maxOps)
	}
}

func (l *Logger) pruneTo(max int) int {
	dropped := 0
	for len(l.order) > max {
		oldest := l.order[0]
		l.order = l.order[1:]
		for _, e := range l.entries[oldest] {
			delete(l.checksums, e.Key())
		}
		delete(l.entries, oldest)
		dropped++
	}
	return dropped
}
