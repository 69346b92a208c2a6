package inventory

import "github.com/shopspring/decimal"

// AllocationResult is the outcome of a FIFO allocation. On failure Allocations is
// empty and NextLots equals the input pool.
type AllocationResult struct {
	Allocations []Allocation
	NextLots    []Lot
	failed      bool
}

// Failed reports whether the allocation was rejected.
func (r AllocationResult) Failed() bool {
	return r.failed
}

// Cost is the cost basis of the allocated quantity.
func (r AllocationResult) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(lineCost(a.Qty, a.PurchasePrice))
	}
	return total
}

// TotalCost is Cost as stored on a sale.
func (r AllocationResult) TotalCost() float64 {
	return r.Cost().InexactFloat64()
}

// Allocate consumes qty units of productID/size from the oldest lots first.
// It never mutates lots. The operation is all-or-nothing: when the matching lots
// cannot cover qty the original pool is returned with ErrInsufficientStock.
func Allocate(lots []Lot, productID, size string, qty int) (AllocationResult, error) {
	if productID == "" || size == "" || qty <= 0 {
		return rejected(lots), ErrMalformedRequest
	}

	var target []indexedLot
	others := make([]Lot, 0, len(lots))
	for i, l := range lots {
		if l.ProductID == productID && l.Size == size {
			target = append(target, indexedLot{lot: l, idx: i})
			continue
		}
		others = append(others, l)
	}
	sortIndexed(target)

	remaining := qty
	var allocations []Allocation
	kept := make([]Lot, 0, len(target))
	for _, item := range target {
		lot := item.lot
		if remaining <= 0 {
			kept = append(kept, lot)
			continue
		}
		if lot.Qty <= 0 {
			continue
		}
		take := min(lot.Qty, remaining)
		allocations = append(allocations, Allocation{
			LotID:         lot.ID,
			Qty:           take,
			PurchasePrice: lot.PurchasePrice,
		})
		remaining -= take
		if left := lot.Qty - take; left > 0 {
			lot.Qty = left
			if lot.ConfirmedQty > left {
				lot.ConfirmedQty = left
			}
			kept = append(kept, lot)
		}
	}
	if remaining > 0 {
		return rejected(lots), ErrInsufficientStock
	}

	return AllocationResult{
		Allocations: allocations,
		NextLots:    cloneLots(append(others, kept...)),
	}, nil
}

func rejected(lots []Lot) AllocationResult {
	return AllocationResult{Allocations: []Allocation{}, NextLots: cloneLots(lots), failed: true}
}
