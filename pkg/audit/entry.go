// Package audit provides a durable, tamper-evident record of every
// state-changing pipeline operation.
//
// Entries are immutable once appended. Each entry carries a SHA-256 checksum
// computed over every field except the checksum itself, so any later mutation
// of a persisted entry is detectable by VerifyIntegrity.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Operation identifies the kind of pipeline operation being audited.
type Operation string

const (
	OpIngest   Operation = "ingest"
	OpIndex    Operation = "index"
	OpQuery    Operation = "query"
	OpRollback Operation = "rollback"
	OpDelete   Operation = "delete"
)

// Status identifies where an operation is in its lifecycle.
type Status string

const (
	StatusStarted    Status = "started"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// RollbackMetadata captures the exact structure needed to undo a mutation.
// It is embedded inside a completed entry and read-only once written.
type RollbackMetadata struct {
	// PreviousState is the prior state of the mutated entity, or nil if the
	// entity did not exist before the operation.
	PreviousState any `json:"previous_state"`

	// AffectedFiles lists files touched by the operation.
	AffectedFiles []string `json:"affected_files,omitempty"`

	// AffectedIndices lists vector store entries touched by the operation.
	AffectedIndices []string `json:"affected_indices,omitempty"`

	// RecoverySteps is a human-readable undo plan for manual recovery.
	RecoverySteps []string `json:"recovery_steps,omitempty"`
}

// Entry is one immutable audit log record. All entries belonging to one
// logical operation share an OperationID.
type Entry struct {
	OperationID      string            `json:"operation_id"`
	Timestamp        int64             `json:"timestamp"` // ms since epoch
	Operation        Operation         `json:"operation"`
	Status           Status            `json:"status"`
	Details          map[string]any    `json:"details,omitempty"`
	RollbackMetadata *RollbackMetadata `json:"rollback_metadata,omitempty"`
	Error            string            `json:"error,omitempty"`
	Checksum         string            `json:"checksum"`
}

// Key returns the entry's identity in the checksum index,
// "operationID-timestamp".
func (e *Entry) Key() string {
	return fmt.Sprintf("%s-%d", e.OperationID, e.Timestamp)
}

// ComputeChecksum calculates the SHA-256 checksum over every field of the
// entry except Checksum itself.
//
// The entry is canonicalized first: marshaled with the checksum cleared, then
// round-tripped through a generic map and marshaled again. encoding/json
// emits map keys in sorted order, so the hashed byte stream is identical
// whether the entry holds live structs (at write time) or decoded maps (after
// a load from disk).
func ComputeChecksum(e Entry) (string, error) {
	e.Checksum = ""

	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshaling entry for checksum: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("canonicalizing entry for checksum: %w", err)
	}
	delete(generic, "checksum")

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshaling canonical entry: %w", err)
	}

	h := sha256.Sum256(canonical)
	return hex.EncodeToString(h[:]), nil
}
