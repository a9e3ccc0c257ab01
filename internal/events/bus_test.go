package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan AcquisitionStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e AcquisitionStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(AcquisitionStateChangedEvent{State: "streaming", Previous: "disabled", CardIndex: 1})

	got := <-received
	if got.State != "streaming" || got.CardIndex != 1 {
		t.Errorf("Unexpected event %+v", got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan CardsScannedEvent, 1)
	received2 := make(chan CardsScannedEvent, 1)

	unsub1 := bus.Subscribe(func(e CardsScannedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e CardsScannedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(CardsScannedEvent{Status: "ok", Cards: []string{"Brooktree Bt878"}})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan AcquisitionFailedEvent, 1)

	unsub := bus.Subscribe(func(e AcquisitionFailedEvent) { received <- e })

	bus.Publish(AcquisitionFailedEvent{Code: "NO_CARDS"})
	<-received

	unsub()

	bus.Publish(AcquisitionFailedEvent{Code: "DEVICE_BUSY"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()
	peerReceived := make(chan bool, 1)
	configReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(PeerModeChangedEvent) { peerReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(ConfigAppliedEvent) { configReceived <- true })
	defer unsub2()

	bus.Publish(PeerModeChangedEvent{Slave: true})
	<-peerReceived
	select {
	case <-configReceived:
		t.Fatal("Config subscriber should NOT have received PeerModeChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(ConfigAppliedEvent{Source: "api"})
	<-configReceived
	select {
	case <-peerReceived:
		t.Fatal("Peer subscriber should NOT have received ConfigAppliedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(AcquisitionStateChangedEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(AcquisitionStateChangedEvent{State: "bound", Timestamp: time.Now().Format(time.RFC3339)})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestEventJSONSerialization(t *testing.T) {
	data, err := json.Marshal(AcquisitionStateChangedEvent{
		State:     "streaming",
		Previous:  "bound",
		CardIndex: 0,
		Reason:    "configure",
		Timestamp: "2026-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, ok := result["session_id"]; ok {
		t.Error("Empty session id should be omitted")
	}
	if result["state"] != "streaming" || result["card_index"] != float64(0) {
		t.Errorf("Unexpected JSON %s", data)
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[ConfigAppliedEvent](bus, ch)
	defer unsub()

	bus.Publish(ConfigAppliedEvent{Source: "file", CardModel: 5})

	received, ok := (<-ch).(ConfigAppliedEvent)
	if !ok || received.Source != "file" || received.CardModel != 5 {
		t.Errorf("Unexpected event %+v", received)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)
	unsub := SubscribeAll(bus, ch)

	all := []Event{
		AcquisitionStateChangedEvent{},
		AcquisitionFailedEvent{},
		CardsScannedEvent{},
		ConfigAppliedEvent{},
		PeerModeChangedEvent{},
		VBIStatsEvent{},
	}
	for _, ev := range all {
		bus.Publish(ev)
	}

	seen := make(map[uint32]bool)
	for range all {
		select {
		case ev := <-ch:
			seen[ev.(Event).Type()] = true
		case <-time.After(time.Second):
			t.Fatalf("Only received %d of %d events", len(seen), len(all))
		}
	}
	if len(seen) != len(all) {
		t.Errorf("Expected every event type, got %v", seen)
	}

	unsub()
	bus.Publish(PeerModeChangedEvent{})
	select {
	case <-ch:
		t.Error("Received an event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[CardsScannedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(CardsScannedEvent{Status: "ok"})
		done <- true
	}()
	<-done
}
