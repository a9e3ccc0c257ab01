// Package events is the in-process event bus.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; each subscriber sees events in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(AcquisitionFailedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case AcquisitionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case AcquisitionFailedEvent:
		event.Publish(b.dispatcher, e)
	case CardsScannedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigAppliedEvent:
		event.Publish(b.dispatcher, e)
	case PeerModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case VBIStatsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns an
// unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e CardsScannedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(AcquisitionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AcquisitionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CardsScannedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigAppliedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PeerModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(VBIStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
