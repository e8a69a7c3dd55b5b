// Package telemetry records operational events for the cache lifecycle,
// such as install runs and their outcomes.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindInstall = "install"
)

// Event outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Event is one recorded cache lifecycle event.
type Event struct {
	ID         string
	Kind       string
	Namespace  string
	AssetCount int
	Outcome    string
	Detail     string
	Timestamp  time.Time
}

// EventStore persists lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, evt Event) error
}

// Emitter records lifecycle events to an EventStore.
type Emitter struct {
	store EventStore
	clock func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(store EventStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an event, assigning an ID and timestamp when unset.
// It is a no-op when the emitter or its store is nil.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendEvent(ctx, evt)
}
