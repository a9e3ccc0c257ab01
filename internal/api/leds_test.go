package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/led"
)

type fakeLEDs struct {
	mu   sync.Mutex
	sets []string
}

func (f *fakeLEDs) Set(ledType string, enabled bool, pattern string) error {
	if ledType != led.StatusLED && ledType != "user" {
		return fmt.Errorf("%w %q", led.ErrUnknownLED, ledType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, fmt.Sprintf("%s:%v:%s", ledType, enabled, pattern))
	return nil
}

func (f *fakeLEDs) Available() []string { return []string{led.StatusLED, "user"} }
func (f *fakeLEDs) Patterns() []string  { return []string{led.PatternSolid, led.PatternBlink} }

func TestLEDRoutes(t *testing.T) {
	ctrl := &fakeLEDs{}
	manager := led.NewManager(ctrl, events.New(), slog.Default())
	ts := newHTTPServer(t, &Options{Hardware: newFakeHardware(), LEDManager: manager})

	resp := get(t, ts.URL+"/api/leds")
	var status struct {
		AvailableTypes []string `json:"available_types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.AvailableTypes) != 2 {
		t.Errorf("Unexpected LED types %v", status.AvailableTypes)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"status LED is owned by acquisition", `{"type":"status","enabled":true}`, http.StatusConflict},
		{"missing LED", `{"type":"act","enabled":true}`, http.StatusNotFound},
		{"auxiliary LED", `{"type":"user","enabled":true,"pattern":"blink"}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/leds", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.sets) != 1 || ctrl.sets[0] != "user:true:blink" {
		t.Errorf("Unexpected LED writes %v", ctrl.sets)
	}
}
