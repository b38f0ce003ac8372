package cart

// Write is one server call planned by PlanMerge. Create is set when the
// server has no line for the product yet; otherwise the existing line is set
// to Quantity.
type Write struct {
	ProductID string
	Quantity  int
	Create    bool
}

// PlanMerge computes the writes that bring the server cart up to the merge
// of both carts. Every product ends at max(server, local) quantity. Lines
// only the server has are left alone, so running the plan again against its
// own result yields no writes.
func PlanMerge(server, local Cart) []Write {
	current := make(map[string]int, len(server.Items))
	for _, it := range server.Items {
		current[it.ProductID] += it.Quantity
	}

	var writes []Write
	planned := make(map[string]bool, len(local.Items))
	for _, it := range local.Items {
		if it.ProductID == "" || planned[it.ProductID] {
			continue
		}
		planned[it.ProductID] = true

		have, onServer := current[it.ProductID]
		target := max(have, it.Quantity)
		if target < 1 || (onServer && target == have) {
			continue
		}
		writes = append(writes, Write{ProductID: it.ProductID, Quantity: target, Create: !onServer})
	}
	return writes
}
