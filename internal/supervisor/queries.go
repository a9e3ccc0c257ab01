package supervisor

import (
	"github.com/smazurov/vbinode/internal/acq"
	"github.com/smazurov/vbinode/internal/events"
	"github.com/smazurov/vbinode/internal/metrics"
)

// Scan runs the bus scan if it has not succeeded yet and records the result.
func (s *Supervisor) Scan(reportErrors bool) (acq.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ctl.Scan(reportErrors)
	s.recordScan()
	return r, err
}

// Rescan drops the cached card list and scans again.
func (s *Supervisor) Rescan(reportErrors bool) (acq.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ctl.Rescan(reportErrors)
	s.recordScan()
	return r, err
}

// recordScan publishes the cached scan result and remembers the chip of
// every discovered card (must hold lock).
func (s *Supervisor) recordScan() {
	r := s.ctl.ScanResult()
	if r.Status == acq.NotScanned {
		return
	}

	names := make([]string, len(r.Cards))
	for i, c := range r.Cards {
		names[i] = c.ChipName()
	}
	s.bus.Publish(events.CardsScannedEvent{Status: r.Status.String(), Cards: names, Timestamp: now()})
	if r.Status != acq.ScanOK {
		return
	}
	metrics.SetCardsDiscovered(len(r.Cards))

	if s.store == nil {
		return
	}
	stored := s.stored().Cards
	cards := make([]acq.StoredCard, len(r.Cards))
	changed := len(stored) != len(cards)
	for i, c := range r.Cards {
		cards[i] = acq.StoredCard{ChipType: c.ChipType()}
		if i < len(stored) && stored[i].ChipType == c.ChipType() {
			cards[i].CardModel = stored[i].CardModel
		}
		if i >= len(stored) || stored[i] != cards[i] {
			changed = true
		}
	}
	if cfg := s.ctl.Config(); cfg.Driver == acq.DriverPCI && cfg.SourceIndex < len(cards) && cards[cfg.SourceIndex].ChipType == cfg.ChipType {
		if cards[cfg.SourceIndex].CardModel != cfg.CardModel {
			cards[cfg.SourceIndex].CardModel = cfg.CardModel
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := s.store.SetCards(cards); err != nil {
		s.logger.Error("Failed to persist discovered cards", "error", err)
	}
}

// EnumerateCards lists the cards for the given backend with display names,
// falling back to the stored cards when the scan fails.
func (s *Supervisor) EnumerateCards(kind acq.DriverKind, showDrvErr bool) ([]acq.CardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.ctl.EnumerateCards(kind, s.stored().Cards, showDrvErr)
	s.recordScan()
	return entries, err
}

// Scanned returns the cached scan result without scanning.
func (s *Supervisor) Scanned() acq.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.ScanResult()
}

// CardName returns the model name of a card model on a discovered card.
func (s *Supervisor) CardName(sourceIndex, cardModel int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.CardName(sourceIndex, cardModel)
}

// InputNames lists the video inputs of a card model on a discovered card.
func (s *Supervisor) InputNames(sourceIndex, cardModel int, kind acq.DriverKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for i := 0; ; i++ {
		name, ok := s.ctl.InputName(sourceIndex, cardModel, kind, i)
		if !ok {
			return names
		}
		names = append(names, name)
	}
}

// QueryCardParams autodetects the model dependent parameters of a card.
func (s *Supervisor) QueryCardParams(sourceIndex int, p acq.CardParams) (acq.CardParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.QueryCardParams(sourceIndex, p)
}

// CheckStored validates the current configuration against the hardware.
func (s *Supervisor) CheckStored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.ctl.Config()
	return s.ctl.CheckCardParams(acq.CheckRequest{
		Driver:      cfg.Driver,
		SourceIndex: cfg.SourceIndex,
		ChipType:    cfg.ChipType,
		CardModel:   cfg.CardModel,
		TunerType:   cfg.TunerType,
		PLLType:     cfg.PLLType,
		Input:       s.inputForCheck(cfg),
	})
}

func (s *Supervisor) inputForCheck(cfg acq.HardwareConfig) int {
	if cfg.InputSource != acq.InputUnset {
		return cfg.InputSource
	}
	return s.stored().Input.Source
}
