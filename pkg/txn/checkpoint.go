package txn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

// CheckpointType identifies the kind of entity a checkpoint covers.
type CheckpointType string

const (
	// CheckpointVector covers a vector store entry.
	CheckpointVector CheckpointType = "vector"

	// CheckpointFile covers a file in the storage sandbox.
	CheckpointFile CheckpointType = "file"

	// CheckpointMetadata covers derived metadata keyed alongside a vector
	// entry.
	CheckpointMetadata CheckpointType = "metadata"
)

// Checkpoint records the pre-mutation state of one entity. It must be taken
// before the mutation is applied.
type Checkpoint struct {
	Type CheckpointType `json:"type"`
	ID   string         `json:"id"`

	// PreviousState is the entity's state before the mutation, or nil if
	// the entity did not exist. For vector checkpoints this is a
	// *vector.Document; for file checkpoints the file contents as a string.
	PreviousState any `json:"previous_state"`

	Timestamp int64 `json:"timestamp"` // ms since epoch
}

// Tx accumulates checkpoints for one in-flight operation. It is ephemeral
// and in-memory only, scoped to the operation's lifetime.
type Tx struct {
	OperationID string
	Operation   string
	StartedAt   time.Time

	checkpoints []Checkpoint
	committed   bool
}

// Checkpoints returns a copy of the accumulated checkpoints in insertion
// order.
func (t *Tx) Checkpoints() []Checkpoint {
	out := make([]Checkpoint, len(t.checkpoints))
	copy(out, t.checkpoints)
	return out
}

// describe renders a checkpoint as a human-readable recovery step.
func (c Checkpoint) describe() string {
	switch c.Type {
	case CheckpointVector:
		if c.PreviousState == nil {
			return fmt.Sprintf("delete vector entry %q (did not exist before the operation)", c.ID)
		}
		return fmt.Sprintf("restore vector entry %q to its previous state", c.ID)
	case CheckpointFile:
		if c.PreviousState == nil {
			return fmt.Sprintf("delete file %q (did not exist before the operation)", c.ID)
		}
		return fmt.Sprintf("restore file %q to its previous contents", c.ID)
	default:
		if c.PreviousState == nil {
			return fmt.Sprintf("delete metadata %q (did not exist before the operation)", c.ID)
		}
		return fmt.Sprintf("restore metadata %q to its previous state", c.ID)
	}
}

// decodeCheckpoints converts a persisted previous-state payload (decoded
// JSON, so []any of maps) back into checkpoints.
func decodeCheckpoints(state any) ([]Checkpoint, error) {
	if cps, ok := state.([]Checkpoint); ok {
		return cps, nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("re-encoding persisted checkpoints: %w", err)
	}

	var cps []Checkpoint
	if err := json.Unmarshal(raw, &cps); err != nil {
		return nil, fmt.Errorf("decoding persisted checkpoints: %w", err)
	}

	return cps, nil
}

// decodeDocument converts a checkpoint previous-state payload into a vector
// document. Live checkpoints hold *vector.Document; persisted ones hold the
// decoded JSON map.
func decodeDocument(state any) (*vector.Document, error) {
	switch v := state.(type) {
	case *vector.Document:
		return v, nil
	case vector.Document:
		return &v, nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("re-encoding previous document state: %w", err)
	}

	var doc vector.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding previous document state: %w", err)
	}

	return &doc, nil
}
