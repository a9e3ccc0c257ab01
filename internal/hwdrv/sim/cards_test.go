package sim

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCards(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCards(t *testing.T) {
	path := writeCards(t, `
[[card]]
vendor_id = 0x109e
device_id = 0x036e
subsystem_id = 0x13eb0070
bus = 3
slot = 5

[[card]]
vendor_id = 0x1131
device_id = 0x7134
bus = 4
busy = true
`)
	cards, err := LoadCards(path)
	if err != nil {
		t.Fatalf("LoadCards failed: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, got %d", len(cards))
	}
	if c := cards[0]; c.VendorID != 0x109e || c.DeviceID != 0x036e || c.SubsystemID != 0x13eb0070 || c.Bus != 3 || c.Slot != 5 {
		t.Errorf("Unexpected first card %+v", c)
	}
	if !cards[1].Busy {
		t.Error("Expected second card busy")
	}

	d := New(nil, cards...)
	if err := d.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := d.Probe(0x109e, 0x036e, 0); !ok {
		t.Error("Loaded card not found on the simulated bus")
	}
}

func TestLoadCardsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid toml", "[[card]\nvendor_id = 1"},
		{"missing ids", "[[card]]\nbus = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCards(writeCards(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
	if _, err := LoadCards(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
