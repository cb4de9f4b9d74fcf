// Package events is the in-process publish/subscribe bus that lets the
// outreach engines react to each other without importing each other.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent is embedded by concrete events to carry their timestamp.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event with at in UTC. A zero at means now, so callers
// holding an injected clock keep events consistent with the rows they wrote.
func NewBaseEvent(at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{Timestamp: at.UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function or method value subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus fans events out to the handlers subscribed under their name.
// Publish returns immediately; PublishSync returns the handlers' joined errors.
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
