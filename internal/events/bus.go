package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Usage: bus.Publish(RecordingStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case OutputToggledEvent:
		event.Publish(b.dispatcher, e)
	case DetectionEvent:
		event.Publish(b.dispatcher, e)
	case RecordingStartedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingExtendedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingFinishedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingFailedEvent:
		event.Publish(b.dispatcher, e)
	case TranscodeCompletedEvent:
		event.Publish(b.dispatcher, e)
	case TranscodeFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler; the handler's parameter type selects
// the events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e TranscodeFailedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(OutputToggledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DetectionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingExtendedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TranscodeCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TranscodeFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Publisher is the publishing half of Bus, accepted by components that only emit events.
type Publisher interface {
	Publish(ev Event)
}
