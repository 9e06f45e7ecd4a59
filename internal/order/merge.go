package order

// Merge prepends the orders of incoming whose ids are not present in
// existing, keeping incoming's relative order, and returns the merged
// collection with the orders that were actually added. Duplicate ids inside
// incoming keep their first occurrence. Existing orders are never modified,
// so a status advanced locally survives re-delivery of the same id.
//
// When nothing is new, merged is existing itself and added is nil.
func Merge(existing, incoming []Order) (merged, added []Order) {
	if len(incoming) == 0 {
		return existing, nil
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, o := range existing {
		seen[o.ID] = struct{}{}
	}
	for _, o := range incoming {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		added = append(added, o)
	}
	if len(added) == 0 {
		return existing, nil
	}
	merged = make([]Order, 0, len(added)+len(existing))
	merged = append(merged, added...)
	merged = append(merged, existing...)
	return merged, added
}

// IndexOf returns the position of the order with id, or -1.
func IndexOf(orders []Order, id string) int {
	for i, o := range orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Remove returns orders without the entry whose id matches. The relative
// order of the remaining entries is unchanged. The input is not modified.
func Remove(orders []Order, id string) ([]Order, bool) {
	idx := IndexOf(orders, id)
	if idx < 0 {
		return orders, false
	}
	out := make([]Order, 0, len(orders)-1)
	out = append(out, orders[:idx]...)
	out = append(out, orders[idx+1:]...)
	return out, true
}
