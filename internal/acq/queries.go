package acq

import (
	"fmt"

	"github.com/smazurov/vbinode/internal/chips"
)

// EnumerateCards lists the discovered cards with display names. stored holds
// the cards remembered by the caller, indexed by source index; their model
// names the card when the chip type still matches.
//
// The bus is scanned on first use. When the scan fails, entries are built
// from stored with ChipType zero to flag the driver failure, and the load
// error is returned alongside them if showDrvErr is set.
func (c *Controller) EnumerateCards(kind DriverKind, stored []StoredCard, showDrvErr bool) ([]CardEntry, error) {
	if kind != DriverPCI {
		c.logger.Debug("Card enumeration for unsupported driver kind", "driver", kind)
		return nil, nil
	}

	var scanErr error
	if c.scanner.Result().Status != ScanOK && !c.slave {
		invariant(!c.pciActive, "PCI acquisition active without a completed scan")
		_, scanErr = c.scanner.Scan(showDrvErr)
	}

	result := c.scanner.Result()
	if result.Status == ScanOK {
		entries := make([]CardEntry, 0, len(result.Cards))
		for i, card := range result.Cards {
			entries = append(entries, CardEntry{
				SourceIndex: i,
				ChipType:    card.ChipType(),
				Name:        c.discoveredCardName(card, storedAt(stored, i)),
			})
		}
		return entries, nil
	}

	var entries []CardEntry
	for i, st := range stored {
		if st.ChipType == 0 || i >= MaxCards {
			break
		}
		vendor, _ := chips.SplitChipType(st.ChipType)
		name := "unknown card"
		if iface, err := c.resolver.Resolve(vendor, nil); err == nil {
			if n, ok := iface.Config.CardName(st.CardModel); ok {
				name = n
			}
		}
		entries = append(entries, CardEntry{SourceIndex: i, ChipType: 0, Name: name})
	}

	if len(entries) == 0 && c.slave && showDrvErr {
		return nil, NewError(CodeSlaveMode,
			"Cannot scan PCI bus for TV cards while connected to a TV application. Terminate the TV application and try again.", nil)
	}
	return entries, scanErr
}

func storedAt(stored []StoredCard, i int) StoredCard {
	if i < len(stored) {
		return stored[i]
	}
	return StoredCard{}
}

func (c *Controller) discoveredCardName(card DiscoveredCard, st StoredCard) string {
	if st.CardModel != 0 && st.ChipType == card.ChipType() {
		iface, err := c.resolver.Resolve(card.VendorID, nil)
		if err != nil {
			return "unknown chip type"
		}
		if name, ok := iface.Config.CardName(st.CardModel); ok {
			return name
		}
	}
	return fmt.Sprintf("unknown %s card", card.ChipName())
}

// CardName returns the name of a card model for the chip at sourceIndex.
func (c *Controller) CardName(sourceIndex, cardModel int) (string, bool) {
	iface, ok := c.configFor(sourceIndex)
	if !ok {
		return "", false
	}
	return iface.Config.CardName(cardModel)
}

// InputName returns the name of an input of a card model. Enumeration ends
// at the first index that reports false.
func (c *Controller) InputName(sourceIndex, cardModel int, kind DriverKind, input int) (string, bool) {
	if kind != DriverPCI {
		c.logger.Debug("Input name for unsupported driver kind", "driver", kind)
		return "", false
	}
	iface, ok := c.configFor(sourceIndex)
	if !ok || input < 0 || input >= iface.Config.NumInputs(cardModel) {
		return "", false
	}
	return iface.Config.InputName(cardModel, input)
}

// configFor resolves an interface without location for static queries.
func (c *Controller) configFor(sourceIndex int) (*chips.Interface, bool) {
	card, ok := c.scanner.Result().Card(sourceIndex)
	if !ok {
		return nil, false
	}
	iface, err := c.resolver.Resolve(card.VendorID, nil)
	if err != nil {
		return nil, false
	}
	return iface, true
}

// QueryCardParams autodetects the card model when p.CardModel <= 0 and
// derives the PLL type from the model. A model of zero after detection
// zeros tuner and PLL.
//
// When acquisition runs on sourceIndex the live session is read. Otherwise
// the I/O layer is loaded and the card opened only for the query, leaving
// everything as it was found.
func (c *Controller) QueryCardParams(sourceIndex int, p CardParams) (CardParams, error) {
	result := c.scanner.Result()
	if result.Status != ScanOK {
		c.logger.Debug("Card query before bus scan", "source_index", sourceIndex)
		return p, NewError(CodeNotScanned, "The PCI bus has not been scanned.", nil)
	}
	if _, ok := result.Card(sourceIndex); !ok {
		c.logger.Debug("Card query for invalid index", "source_index", sourceIndex, "cards", len(result.Cards))
		return p, NewError(CodeCardIndexRange, fmt.Sprintf("TV card #%d does not exist (found %d)", sourceIndex, len(result.Cards)), nil)
	}

	var iface *chips.Interface
	switch {
	case c.pciActive && c.session.SourceIndex() != sourceIndex:
		c.logger.Debug("Card query while acquisition runs on a different card",
			"running", c.session.SourceIndex(), "requested", sourceIndex)
		return p, NewError(CodeCardInUse, "Acquisition is running for a different TV card. Stop acquisition and try again.", nil)
	case c.pciActive:
		iface = c.session.Interface()
	case c.ksActive:
		return p, NewError(CodeCardInUse, "Acquisition is running through the kernel streaming backend. Stop acquisition and try again.", nil)
	case c.slave:
		return p, NewError(CodeSlaveMode, "Cannot access the TV card while connected to a TV application.", nil)
	default:
		wasLoaded := c.io.loaded
		if err := c.io.load(); err != nil {
			return p, loadError(err)
		}
		if !wasLoaded {
			defer c.io.unload()
		}
		if err := c.session.Open(sourceIndex); err != nil {
			return p, err
		}
		defer c.session.Close()
		iface = c.session.Interface()
	}

	cfg := iface.Config
	if p.CardModel <= 0 {
		p.CardModel = cfg.AutoDetectCardType(iface.Params)
	}
	if p.CardModel > 0 {
		p.PLLType = cfg.PLLType(p.CardModel)
	} else {
		p.TunerType, p.PLLType = 0, 0
	}
	c.logger.Debug("Card parameters queried", "source_index", sourceIndex, "card_model", p.CardModel, "pll_type", p.PLLType)
	return p, nil
}

// CheckCardParams reports whether a stored configuration still fits the
// hardware: same chip at the source index, a known model, and an existing
// input. Before a scan only the model and input are checked.
func (c *Controller) CheckCardParams(req CheckRequest) bool {
	if req.Driver != DriverPCI {
		return false
	}

	result := c.scanner.Result()
	if result.Status == ScanOK {
		card, ok := result.Card(req.SourceIndex)
		if !ok {
			c.logger.Debug("Stored source index no longer valid", "source_index", req.SourceIndex, "cards", len(result.Cards))
			return false
		}
		if card.ChipType() != req.ChipType {
			return false
		}
	} else if req.ChipType == 0 {
		// card not configured yet
		return false
	}

	vendor, _ := chips.SplitChipType(req.ChipType)
	iface, err := c.resolver.Resolve(vendor, nil)
	if err != nil {
		c.logger.Debug("Unknown PCI id in stored configuration", "chip_type", chips.FormatChipType(req.ChipType))
		return false
	}
	_, known := iface.Config.CardName(req.CardModel)
	return known && iface.Config.NumInputs(req.CardModel) > req.Input
}
