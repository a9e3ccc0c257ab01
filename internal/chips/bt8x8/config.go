package bt8x8

import (
	"fmt"
	"sync"

	"github.com/smazurov/vbinode/internal/chips"
)

// cardConfig implements chips.Config over the static card table.
type cardConfig struct {
	mu          sync.Mutex
	bySubsystem map[uint32]int // built lazily on first autodetection
}

func (c *cardConfig) AutoDetectCardType(params chips.Params) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bySubsystem == nil {
		c.bySubsystem = make(map[uint32]int)
		for model, cd := range cards {
			for _, id := range cd.subsystems {
				c.bySubsystem[id] = model
			}
		}
	}
	if model, ok := c.bySubsystem[params.SubsystemID]; ok {
		return model
	}
	return 0
}

func (c *cardConfig) PLLType(cardModel int) int {
	cd, ok := lookupCard(cardModel)
	if !ok {
		return PLLNone
	}
	return cd.pll
}

func (c *cardConfig) CardName(cardModel int) (string, bool) {
	cd, ok := lookupCard(cardModel)
	if !ok {
		return "", false
	}
	return cd.name, true
}

func (c *cardConfig) NumInputs(cardModel int) int {
	cd, ok := lookupCard(cardModel)
	if !ok {
		return 0
	}
	return cd.inputs
}

func (c *cardConfig) InputName(cardModel, input int) (string, bool) {
	cd, ok := lookupCard(cardModel)
	if !ok || input < 0 || input >= cd.inputs {
		return "", false
	}
	switch input {
	case cd.tuner:
		return "Tuner", true
	case cd.svideo:
		return "S-Video", true
	}
	n := 1
	for i := 0; i < input; i++ {
		if i != cd.tuner && i != cd.svideo {
			n++
		}
	}
	return fmt.Sprintf("Composite %d", n), true
}

// Bt8x8 chips predate ACPI power management and never need a wake-up reset.
func (c *cardConfig) SupportsACPI(chips.Params) bool {
	return false
}

func (c *cardConfig) FreeCardList() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySubsystem = nil
}
