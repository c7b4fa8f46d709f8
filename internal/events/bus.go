package events

import (
	"sync/atomic"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
	dropped    atomic.Uint64
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Dropped returns how many events channel subscribers discarded because
// their channel was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(OutputStateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case OutputStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case AudioOverflowEvent:
		event.Publish(b.dispatcher, e)
	case SettingsUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case SourceToggledEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case AudioMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e OutputStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(OutputStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AudioOverflowEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettingsUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceToggledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AudioMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
