package world

// Inventory is a multiset from item-kind to non-negative count. It is
// purely value-typed: every operation returns a new Inventory rather than
// mutating the receiver in place, matching the copy-on-write discipline the
// rest of the data model follows.
type Inventory struct {
	counts map[string]int
}

// NewInventory constructs an empty inventory.
func NewInventory() Inventory {
	return Inventory{counts: make(map[string]int)}
}

// Count returns the quantity held of kind.
func (inv Inventory) Count(kind string) int {
	if inv.counts == nil {
		return 0
	}
	return inv.counts[kind]
}

// Has reports whether the inventory holds at least n of kind.
func (inv Inventory) Has(kind string, n int) bool {
	return inv.Count(kind) >= n
}

// Add returns a new inventory with n more of kind. n must be non-negative.
func (inv Inventory) Add(kind string, n int) (Inventory, error) {
	if n < 0 {
		return inv, ErrNegativeQuantity
	}
	if n == 0 {
		return inv, nil
	}
	next := inv.clone()
	next.counts[kind] += n
	return next, nil
}

// Remove returns a new inventory with n fewer of kind. It fails with
// ErrUndersupplied if the inventory does not hold at least n.
func (inv Inventory) Remove(kind string, n int) (Inventory, error) {
	if n < 0 {
		return inv, ErrNegativeQuantity
	}
	if n == 0 {
		return inv, nil
	}
	if !inv.Has(kind, n) {
		return inv, ErrUndersupplied
	}
	next := inv.clone()
	next.counts[kind] -= n
	if next.counts[kind] == 0 {
		delete(next.counts, kind)
	}
	return next, nil
}

// Kinds returns the item kinds currently held with non-zero count.
func (inv Inventory) Kinds() []string {
	kinds := make([]string, 0, len(inv.counts))
	for k := range inv.counts {
		kinds = append(kinds, k)
	}
	return kinds
}

func (inv Inventory) clone() Inventory {
	next := Inventory{counts: make(map[string]int, len(inv.counts))}
	for k, v := range inv.counts {
		next.counts[k] = v
	}
	return next
}
