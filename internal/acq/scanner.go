package acq

import (
	"errors"
	"log/slog"

	"github.com/smazurov/vbinode/internal/chips"
	"github.com/smazurov/vbinode/internal/hwdrv"
)

// ioLayer tracks whether the I/O layer is loaded so that transient users
// only unload what they loaded themselves.
type ioLayer struct {
	drv    hwdrv.Driver
	loaded bool
}

func (l *ioLayer) load() error {
	if l.loaded {
		return nil
	}
	if err := l.drv.Load(); err != nil {
		return err
	}
	l.loaded = true
	return nil
}

func (l *ioLayer) unload() {
	if !l.loaded {
		return
	}
	l.drv.Unload()
	l.loaded = false
}

// loadError turns an I/O layer load failure into a DRIVER_LOAD error with
// the backend's message.
func loadError(err error) *Error {
	var le *hwdrv.LoadError
	if errors.As(err, &le) {
		return NewError(CodeDriverLoad, le.Message, err)
	}
	return NewError(CodeDriverLoad, "Failed to load the PCI bus driver.", err)
}

// Scanner enumerates known capture chips on the bus. A successful scan is
// cached until Invalidate.
type Scanner struct {
	io     *ioLayer
	logger *slog.Logger
	result ScanResult
	scans  int
}

func newScanner(io *ioLayer, logger *slog.Logger) *Scanner {
	return &Scanner{io: io, logger: logger}
}

// Scan returns the cached card list, scanning first if no scan succeeded
// yet. A load failure yields ScanFailed; the error is returned only when
// reportErrors is set.
func (s *Scanner) Scan(reportErrors bool) (ScanResult, error) {
	if s.result.Status == ScanOK {
		return s.Result(), nil
	}

	if !s.io.loaded {
		if err := s.io.load(); err != nil {
			s.result = ScanResult{Status: ScanFailed}
			if reportErrors {
				return s.Result(), loadError(err)
			}
			s.logger.Debug("Bus scan skipped, I/O layer failed to load", "error", err)
			return s.Result(), nil
		}
		defer s.io.unload()
	}

	s.result = ScanResult{Status: ScanOK, Cards: s.probe()}
	s.scans++
	s.logger.Info("Bus scan complete", "cards", len(s.result.Cards))
	return s.Result(), nil
}

func (s *Scanner) probe() []DiscoveredCard {
	var cards []DiscoveredCard
	for chipIndex, d := range chips.Catalog() {
		if len(cards) >= MaxCards {
			break
		}
		// No gaps within one chip: stop at the first missing ordinal.
		for ordinal := 0; len(cards) < MaxCards; ordinal++ {
			p, ok := s.io.drv.Probe(d.VendorID, d.DeviceID, ordinal)
			if !ok {
				break
			}
			s.logger.Debug("Found capture chip",
				"chip", d.Name,
				"subsystem_id", chips.FormatChipType(p.SubsystemID),
				"bus", p.Bus,
				"slot", p.Slot)
			cards = append(cards, DiscoveredCard{
				ChipIndex:   chipIndex,
				ChipOrdinal: ordinal,
				VendorID:    d.VendorID,
				DeviceID:    d.DeviceID,
				SubsystemID: p.SubsystemID,
				Bus:         p.Bus,
				Slot:        p.Slot,
			})
		}
	}
	return cards
}

// Result returns the current scan state without scanning.
func (s *Scanner) Result() ScanResult {
	r := ScanResult{Status: s.result.Status}
	if s.result.Cards != nil {
		r.Cards = make([]DiscoveredCard, len(s.result.Cards))
		copy(r.Cards, s.result.Cards)
	}
	return r
}

// Invalidate forgets the cached scan so the next Scan probes the bus again.
// The card list is replaced as a whole on that scan.
func (s *Scanner) Invalidate() {
	s.result = ScanResult{}
}
