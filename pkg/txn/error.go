// Package txn provides checkpoint/commit/rollback semantics over the vector
// store and file storage, backed by the audit trail.
//
// A transaction accumulates checkpoints — the pre-mutation state of every
// entity the operation touches — before the mutation is applied. On commit
// the checkpoints become the rollback metadata of the operation's completed
// audit entry; on rollback they are replayed in reverse insertion order so
// dependent state is unwound before its dependency.
package txn

import "errors"

var (
	// ErrAlreadyOpen is returned by Begin when a transaction with the same
	// operation ID is already in flight.
	ErrAlreadyOpen = errors.New("transaction already open")

	// ErrNoTransaction is returned when a checkpoint or commit is attempted
	// outside an open transaction.
	ErrNoTransaction = errors.New("no open transaction")

	// ErrAlreadyCommitted is returned when a transaction is committed twice.
	ErrAlreadyCommitted = errors.New("transaction already committed")

	// ErrNotFound is returned by Rollback when neither an open transaction
	// nor an audit record exists for the operation.
	ErrNotFound = errors.New("no transaction or audit record for operation")

	// ErrNotRollbackable is returned when the operation's last audit entry
	// is not in a rollback-eligible state.
	ErrNotRollbackable = errors.New("operation is not in a rollback-eligible state")

	// ErrNoRollbackMetadata is returned when a committed operation carries
	// no rollback metadata to replay.
	ErrNoRollbackMetadata = errors.New("operation has no rollback metadata")
)
