package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/smazurov/vbinode/internal/acq"
)

func setupTestStore(t *testing.T) (*tomlStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hardware.toml")
	return NewTOML(path).(*tomlStore), path
}

func TestNewTOML(t *testing.T) {
	s := NewTOML("").(*tomlStore)
	if s.path != DefaultPath {
		t.Errorf("expected default path %q, got %s", DefaultPath, s.path)
	}
	if got := s.Get(); !reflect.DeepEqual(got, Default()) {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	s, _ := setupTestStore(t)
	if err := s.Load(); err != nil {
		t.Errorf("Load should not error on non-existent file, got: %v", err)
	}
	if got := s.Get(); got.Acquisition.Driver != acq.DriverNone || got.Input.Source != acq.InputUnset {
		t.Errorf("unexpected defaults %+v", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, path := setupTestStore(t)

	settings := acq.Settings{Driver: acq.DriverPCI, SourceIndex: 1, Priority: 2, ChipType: 0x109e036e, CardModel: 5, TunerType: 2, PLLType: 1}
	if err := s.SetAcquisition(settings); err != nil {
		t.Fatalf("SetAcquisition failed: %v", err)
	}
	if err := s.SetInput(Input{Source: 2, TunerFreq: 48250, TunerNorm: 1}); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	cards := []acq.StoredCard{{ChipType: 0x109e036e, CardModel: 5}, {ChipType: 0x11317134}}
	if err := s.SetCards(cards); err != nil {
		t.Fatalf("SetCards failed: %v", err)
	}

	reloaded := NewTOML(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := reloaded.Get()
	if got.Acquisition != settings {
		t.Errorf("acquisition = %+v, want %+v", got.Acquisition, settings)
	}
	if got.Input != (Input{Source: 2, TunerFreq: 48250, TunerNorm: 1}) {
		t.Errorf("input = %+v", got.Input)
	}
	if !reflect.DeepEqual(got.Cards, cards) {
		t.Errorf("cards = %+v", got.Cards)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the hardware file, found %d entries", len(entries))
	}
}

func TestDecodeFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, h Hardware)
	}{
		{
			name: "full file",
			content: `version = 1
[acquisition]
driver = "pci"
source_index = 0
card_model = 7
wdm_stop = true

[input]
source = 1

[[cards]]
chip_type = 278791022
card_model = 7
`,
			check: func(t *testing.T, h Hardware) {
				if h.Acquisition.Driver != acq.DriverPCI || h.Acquisition.CardModel != 7 || !h.Acquisition.WDMStop {
					t.Errorf("unexpected acquisition %+v", h.Acquisition)
				}
				if len(h.Cards) != 1 || h.Cards[0].ChipType != 278791022 {
					t.Errorf("unexpected cards %+v", h.Cards)
				}
			},
		},
		{
			name:    "missing version and driver",
			content: "[input]\nsource = 3\n",
			check: func(t *testing.T, h Hardware) {
				if h.Version != currentVersion || h.Acquisition.Driver != acq.DriverNone || h.Input.Source != 3 {
					t.Errorf("unexpected defaults %+v", h)
				}
			},
		},
		{
			name:    "too many cards",
			content: strings.Repeat("[[cards]]\ncard_model = 1\n", acq.MaxCards+2),
			check: func(t *testing.T, h Hardware) {
				if len(h.Cards) != acq.MaxCards {
					t.Errorf("expected %d cards, got %d", acq.MaxCards, len(h.Cards))
				}
			},
		},
		{name: "bad driver", content: "[acquisition]\ndriver = \"usb\"\n", wantErr: "unknown driver kind"},
		{name: "newer version", content: "version = 9\n", wantErr: "newer than supported"},
		{name: "invalid toml", content: "[acquisition\n", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hardware.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			h, err := Decode(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				if !reflect.DeepEqual(h, Default()) {
					t.Errorf("failed decode should return defaults, got %+v", h)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			tt.check(t, h)
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := setupTestStore(t)
	_ = s.SetCards([]acq.StoredCard{{CardModel: 1}})

	h := s.Get()
	h.Cards[0].CardModel = 99
	if s.Get().Cards[0].CardModel != 1 {
		t.Error("mutating Get() result changed the store")
	}
}

func TestReplaceDoesNotWrite(t *testing.T) {
	s, path := setupTestStore(t)
	h := Default()
	h.Input.Source = 2
	s.Replace(h)

	if s.Get().Input.Source != 2 {
		t.Error("Replace did not update the store")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Replace should not write the file")
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewTOML(filepath.Join(blocker, "hardware.toml"))

	if err := s.SetInput(Input{Source: 1}); err == nil {
		t.Fatal("expected a write error below a regular file")
	}
	if s.Get().Input.Source != acq.InputUnset {
		t.Error("failed save changed the in-memory state")
	}
}
