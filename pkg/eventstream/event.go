package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeOperationCompleted is emitted after a pipeline operation
	// commits.
	EventTypeOperationCompleted = "obsagent.operation.completed"

	// EventTypeOperationFailed is emitted after a pipeline operation fails.
	EventTypeOperationFailed = "obsagent.operation.failed"

	// EventTypeOperationRolledBack is emitted after a committed operation
	// is rolled back.
	EventTypeOperationRolledBack = "obsagent.operation.rolled_back"
)

// OperationEvent is a transport-neutral event payload for a pipeline
// operation lifecycle transition.
type OperationEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// OperationID groups this event with the audit trail.
	OperationID string `json:"operation_id"`

	// Operation is the pipeline operation kind (ingest, index, query,
	// rollback, delete).
	Operation string `json:"operation"`

	// NoteID identifies the affected note, when the operation targets one.
	NoteID string `json:"note_id,omitempty"`

	// Details carries operation-specific metadata.
	Details map[string]any `json:"details,omitempty"`
}
