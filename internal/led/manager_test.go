package led

import (
	"sync"
	"testing"
	"time"

	"github.com/smazurov/vbinode/internal/events"
)

type setCall struct {
	ledType string
	enabled bool
	pattern string
}

type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(ledType string, enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{ledType, enabled, pattern})
	return nil
}

func (m *mockController) Available() []string { return []string{StatusLED} }
func (m *mockController) Patterns() []string  { return []string{"solid", "blink", "heartbeat"} }

func (m *mockController) last() (setCall, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}, 0
	}
	return m.calls[len(m.calls)-1], len(m.calls)
}

func waitFor(t *testing.T, mgr *Manager, want Indication) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mgr.Current() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected indication %+v, got %+v", want, mgr.Current())
}

func startManager(t *testing.T) (*Manager, *mockController, *events.Bus) {
	t.Helper()
	ctrl := &mockController{}
	bus := events.New()
	mgr := NewManager(ctrl, bus, testLogger())
	mgr.Start()
	t.Cleanup(mgr.Stop)
	return mgr, ctrl, bus
}

func TestManager_StartsOff(t *testing.T) {
	mgr, ctrl, _ := startManager(t)

	call, n := ctrl.last()
	if n != 1 || call != (setCall{StatusLED, false, "solid"}) {
		t.Errorf("Expected one off call, got %+v (%d calls)", call, n)
	}
	if mgr.Current() != indicateOff {
		t.Errorf("Current() = %+v", mgr.Current())
	}
}

func TestManager_Streaming(t *testing.T) {
	mgr, ctrl, bus := startManager(t)

	bus.Publish(events.AcquisitionStateChangedEvent{State: "streaming", Previous: "disabled"})
	waitFor(t, mgr, indicateStreaming)

	if call, _ := ctrl.last(); call.pattern != "solid" || !call.enabled {
		t.Errorf("Expected solid on, got %+v", call)
	}

	bus.Publish(events.AcquisitionStateChangedEvent{State: "disabled", Previous: "streaming"})
	waitFor(t, mgr, indicateOff)
}

func TestManager_FailureHeartbeat(t *testing.T) {
	mgr, _, bus := startManager(t)

	bus.Publish(events.AcquisitionFailedEvent{Operation: "start", Code: "DEVICE_BUSY"})
	waitFor(t, mgr, indicateFailed)

	// Only a successful start clears the failure.
	bus.Publish(events.AcquisitionStateChangedEvent{State: "disabled"})
	time.Sleep(20 * time.Millisecond)
	if mgr.Current() != indicateFailed {
		t.Errorf("Failure indication cleared by %+v", mgr.Current())
	}

	bus.Publish(events.AcquisitionStateChangedEvent{State: "streaming"})
	waitFor(t, mgr, indicateStreaming)
}

func TestManager_SkipsRepeatedIndication(t *testing.T) {
	mgr, ctrl, bus := startManager(t)

	bus.Publish(events.AcquisitionStateChangedEvent{State: "slave_observing"})
	bus.Publish(events.AcquisitionStateChangedEvent{State: "disabled"})
	time.Sleep(20 * time.Millisecond)

	if _, n := ctrl.last(); n != 1 {
		t.Errorf("Expected no LED writes for unchanged indication, got %d calls", n)
	}
	if mgr.GetController() != ctrl {
		t.Error("GetController() did not return the original controller")
	}
}
