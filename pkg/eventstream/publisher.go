package eventstream

import "context"

// Publisher publishes operation events to an event stream backend.
type Publisher interface {
	PublishOperation(ctx context.Context, event *OperationEvent) error
	Close() error
}
