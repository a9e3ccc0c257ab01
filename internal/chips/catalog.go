package chips

import "fmt"

// PCI vendor ids of the supported capture chip manufacturers.
const (
	VendorBrooktree uint16 = 0x109e
	VendorPhilips   uint16 = 0x1131
	VendorConexant  uint16 = 0x14f1
)

// Descriptor identifies one capture chip model.
type Descriptor struct {
	VendorID uint16
	DeviceID uint16
	Name     string
}

// Type returns the packed chip type of the descriptor.
func (d Descriptor) Type() uint32 {
	return ChipType(d.VendorID, d.DeviceID)
}

// The order is significant: bus scans probe chips in this order.
var catalog = [...]Descriptor{
	{VendorBrooktree, 0x036e, "Brooktree Bt878"},
	{VendorBrooktree, 0x036f, "Brooktree Bt878A"},
	{VendorBrooktree, 0x0350, "Brooktree Bt848"},
	{VendorBrooktree, 0x0351, "Brooktree Bt849"},
	{VendorPhilips, 0x7134, "Philips SAA7134"},
	{VendorPhilips, 0x7133, "Philips SAA7133"},
	{VendorPhilips, 0x7130, "Philips SAA7130"},
	{VendorConexant, 0x8800, "Conexant CX23881 (Bt881)"},
}

// Catalog returns the known chips in probe order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog[:])
	return out
}

// Count returns the number of known chips.
func Count() int {
	return len(catalog)
}

// At returns the descriptor at the given catalog index.
func At(index int) (Descriptor, bool) {
	if index < 0 || index >= len(catalog) {
		return Descriptor{}, false
	}
	return catalog[index], true
}

// Lookup finds a chip by its PCI ids.
func Lookup(vendorID, deviceID uint16) (int, Descriptor, bool) {
	for i, d := range catalog {
		if d.VendorID == vendorID && d.DeviceID == deviceID {
			return i, d, true
		}
	}
	return -1, Descriptor{}, false
}

// ChipType packs vendor and device id into the chip type stored in
// configuration files.
func ChipType(vendorID, deviceID uint16) uint32 {
	return uint32(vendorID)<<16 | uint32(deviceID)
}

// SplitChipType is the inverse of ChipType.
func SplitChipType(chipType uint32) (vendorID, deviceID uint16) {
	return uint16(chipType >> 16), uint16(chipType)
}

// FormatChipType renders a chip type the way it appears in logs.
func FormatChipType(chipType uint32) string {
	return fmt.Sprintf("0x%08X", chipType)
}
