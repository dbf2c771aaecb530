package stock

import "sort"

// SelectActive picks the batch that governs a product's displayed price,
// expiry and stock figure: oldest received among sellable batches, ties
// broken by nearest expiry with nil expiries sorted last. The second return
// is false when no batch qualifies; absence of data is not an error and
// callers degrade to an out-of-stock display.
func SelectActive(batches []Batch) (Batch, bool) {
	eligible := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Sellable() {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return Batch{}, false
	}
	sortFIFO(eligible)
	return eligible[0], true
}

// sortFIFO orders batches oldest-received first, nearest expiry on ties,
// batch id as the final tiebreak for determinism.
func sortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.ID < b.ID
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		return a.ID < b.ID
	})
}
