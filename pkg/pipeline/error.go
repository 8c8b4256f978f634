// Package pipeline composes the vector store, audit log, transaction
// manager and resilient provider clients into the public, audited,
// idempotent operations a caller actually invokes.
package pipeline

import "fmt"

// ValidationError reports input that fails a structural or semantic
// precondition. It is never retried; the reason is surfaced immediately.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
