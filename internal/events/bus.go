package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for camera event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(CameraOpenedEvent{})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete type, so dispatch through
	// a type switch rather than the interface.
	switch e := ev.(type) {
	case CameraOpenedEvent:
		event.Publish(b.dispatcher, e)
	case CameraClosedEvent:
		event.Publish(b.dispatcher, e)
	case CameraErrorEvent:
		event.Publish(b.dispatcher, e)
	case PictureTakenEvent:
		event.Publish(b.dispatcher, e)
	case PreviewFrameEvent:
		event.Publish(b.dispatcher, e)
	case LegacyPreviewFrameEvent:
		event.Publish(b.dispatcher, e)
	case VideoRecordStartedEvent:
		event.Publish(b.dispatcher, e)
	case VideoRecordStoppedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives. Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e PictureTakenEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CameraOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PictureTakenEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreviewFrameEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LegacyPreviewFrameEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(VideoRecordStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(VideoRecordStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler types get a no-op unsubscribe.
		return func() {}
	}
}
