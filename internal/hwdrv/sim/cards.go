package sim

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type cardFile struct {
	Cards []Card `toml:"card"`
}

// LoadCards reads simulated cards from a TOML file with one [[card]] table
// per device, in bus order.
func LoadCards(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read simulated cards: %w", err)
	}
	var f cardFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse simulated cards %s: %w", path, err)
	}
	for i, c := range f.Cards {
		if c.VendorID == 0 || c.DeviceID == 0 {
			return nil, fmt.Errorf("simulated card %d in %s: vendor_id and device_id are required", i, path)
		}
	}
	return f.Cards, nil
}
