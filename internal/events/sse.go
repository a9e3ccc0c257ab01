package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges a callback subscription to a channel for the
// SSE endpoint. Events are dropped while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll bridges every event type to ch and returns one function that
// removes all subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[AcquisitionStateChangedEvent](bus, ch),
		SubscribeToChannel[AcquisitionFailedEvent](bus, ch),
		SubscribeToChannel[CardsScannedEvent](bus, ch),
		SubscribeToChannel[ConfigAppliedEvent](bus, ch),
		SubscribeToChannel[PeerModeChangedEvent](bus, ch),
		SubscribeToChannel[VBIStatsEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
