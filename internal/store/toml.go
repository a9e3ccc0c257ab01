// Package store persists the hardware configuration in a TOML file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/vbinode/internal/acq"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "hardware.toml"

const currentVersion = 1

// Input is the selected video input and tuner state.
type Input struct {
	Source    int `toml:"source" json:"source"`
	TunerFreq int `toml:"tuner_freq" json:"tuner_freq"`
	TunerNorm int `toml:"tuner_norm" json:"tuner_norm"`
}

// Hardware is the complete hardware file.
type Hardware struct {
	Version     int              `toml:"version" json:"version"`
	Acquisition acq.Settings     `toml:"acquisition" json:"acquisition"`
	Input       Input            `toml:"input" json:"input"`
	Cards       []acq.StoredCard `toml:"cards" json:"cards"` // by source index
}

// Default is the configuration of a host that was never set up.
func Default() Hardware {
	return Hardware{
		Version:     currentVersion,
		Acquisition: acq.Settings{Driver: acq.DriverNone},
		Input:       Input{Source: acq.InputUnset},
	}
}

// Store reads and writes the hardware file.
type Store interface {
	Load() error
	Path() string
	Get() Hardware
	SetAcquisition(s acq.Settings) error
	SetInput(in Input) error
	SetCards(cards []acq.StoredCard) error
	// Replace adopts h without writing, for changes made to the file itself.
	Replace(h Hardware)
}

type tomlStore struct {
	path string
	mu   sync.RWMutex
	hw   Hardware
}

// NewTOML creates a TOML-backed store. Call Load to read the file.
func NewTOML(path string) Store {
	if path == "" {
		path = DefaultPath
	}
	return &tomlStore{path: path, hw: Default()}
}

// Decode reads a hardware file. A missing file yields the defaults.
func Decode(path string) (Hardware, error) {
	hw := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return hw, nil
	}
	if err != nil {
		return hw, fmt.Errorf("failed to read hardware config: %w", err)
	}
	if err := toml.Unmarshal(data, &hw); err != nil {
		return Default(), fmt.Errorf("failed to parse hardware config: %w", err)
	}
	if hw.Version == 0 {
		hw.Version = currentVersion
	}
	if hw.Version > currentVersion {
		return Default(), fmt.Errorf("hardware config version %d is newer than supported version %d", hw.Version, currentVersion)
	}
	if _, err := acq.ParseDriverKind(string(hw.Acquisition.Driver)); err != nil {
		return Default(), fmt.Errorf("invalid hardware config: %w", err)
	}
	if hw.Acquisition.Driver == "" {
		hw.Acquisition.Driver = acq.DriverNone
	}
	if len(hw.Cards) > acq.MaxCards {
		hw.Cards = hw.Cards[:acq.MaxCards]
	}
	return hw, nil
}

func (s *tomlStore) Load() error {
	hw, err := Decode(s.path)
	if err != nil {
		return err
	}
	s.Replace(hw)
	return nil
}

func (s *tomlStore) Path() string {
	return s.path
}

func (s *tomlStore) Get() Hardware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hw := s.hw
	hw.Cards = slices.Clone(s.hw.Cards)
	return hw
}

func (s *tomlStore) Replace(h Hardware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.Cards = slices.Clone(h.Cards)
	s.hw = h
}

func (s *tomlStore) SetAcquisition(a acq.Settings) error {
	return s.update(func(h *Hardware) { h.Acquisition = a })
}

func (s *tomlStore) SetInput(in Input) error {
	return s.update(func(h *Hardware) { h.Input = in })
}

func (s *tomlStore) SetCards(cards []acq.StoredCard) error {
	return s.update(func(h *Hardware) { h.Cards = slices.Clone(cards) })
}

func (s *tomlStore) update(fn func(*Hardware)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.hw
	next.Cards = slices.Clone(s.hw.Cards)
	fn(&next)
	if err := save(s.path, next); err != nil {
		return err
	}
	s.hw = next
	return nil
}

// save writes the file through a temporary sibling and a rename so readers
// never see a partial file.
func save(path string, h Hardware) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal hardware config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write hardware config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write hardware config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write hardware config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write hardware config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace hardware config: %w", err)
	}
	return nil
}
