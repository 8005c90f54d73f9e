package stack

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// EventType classifies engine progress events.
type EventType string

const (
	// EventResourceApplying indicates a resource is being applied.
	EventResourceApplying EventType = "resource.applying"
	// EventResourceApplied indicates a resource was applied successfully.
	EventResourceApplied EventType = "resource.applied"
	// EventResourceSkipped indicates a resource was skipped because a
	// dependency failed.
	EventResourceSkipped EventType = "resource.skipped"
	// EventResourceFailed indicates applying or deleting a resource failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceDeleting indicates a resource is being deleted.
	EventResourceDeleting EventType = "resource.deleting"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"
)

// Event is a structured progress event.
type Event struct {
	Type      EventType
	URN       URN
	Message   string
	Err       error
	Timestamp time.Time
}

// Observer receives engine events. Implementations must be safe for
// concurrent use; resources within a level run in parallel.
type Observer interface {
	Event(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// Event calls f.
func (f ObserverFunc) Event(ctx context.Context, event Event) { f(ctx, event) }

// LogObserver writes events to the logger in ctx.
type LogObserver struct{}

// Event implements Observer.
func (LogObserver) Event(ctx context.Context, event Event) {
	logger := log.FromContext(ctx).WithValues("urn", string(event.URN))
	if event.Err != nil {
		logger.Error(event.Err, event.Message, "event", string(event.Type))
		return
	}
	logger.Info(event.Message, "event", string(event.Type))
}

func emit(ctx context.Context, env *Env, typ EventType, urn URN, msg string, err error) {
	env.Observer.Event(ctx, Event{Type: typ, URN: urn, Message: msg, Err: err, Timestamp: time.Now()})
}
