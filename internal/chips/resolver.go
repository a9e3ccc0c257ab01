package chips

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotSupported is returned for chips without a family implementation.
var ErrNotSupported = errors.New("chip family not supported")

// Resolver maps PCI vendor ids to chip families.
type Resolver struct {
	mu       sync.RWMutex
	families map[uint16]Family
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{families: make(map[uint16]Family)}
}

// Register installs the family for a vendor id, replacing any earlier one.
func (r *Resolver) Register(vendorID uint16, family Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[vendorID] = family
}

// Supports reports whether a family is registered for the vendor.
func (r *Resolver) Supports(vendorID uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.families[vendorID]
	return ok
}

// Resolve returns a fresh interface for the vendor. When loc is given, its
// identifiers are copied into the interface parameters so a later open
// targets that physical instance.
func (r *Resolver) Resolve(vendorID uint16, loc *Location) (*Interface, error) {
	r.mu.RLock()
	family, ok := r.families[vendorID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vendor 0x%04x: %w", vendorID, ErrNotSupported)
	}

	iface := &Interface{
		Family:  family.Name(),
		Control: family.NewControl(),
		Config:  family.Config(),
	}
	if loc != nil {
		if loc.VendorID != vendorID {
			panic(fmt.Sprintf("chips: invariant violated: location vendor 0x%04x resolved as 0x%04x", loc.VendorID, vendorID))
		}
		iface.Params.Location = *loc
	}
	return iface, nil
}

// FreeCardLists releases cached card lists of every registered family.
func (r *Resolver) FreeCardLists() {
	r.mu.RLock()
	vendors := make([]int, 0, len(r.families))
	for v := range r.families {
		vendors = append(vendors, int(v))
	}
	sort.Ints(vendors)
	families := make([]Family, 0, len(vendors))
	for _, v := range vendors {
		families = append(families, r.families[uint16(v)])
	}
	r.mu.RUnlock()

	for _, f := range families {
		f.Config().FreeCardList()
	}
}
