package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewLot builds an inbound lot. Lines registered together are offset by their index
// in milliseconds so their FIFO order is fixed.
func NewLot(in InboundInput, line InboundLine, index int, seq int64, now time.Time) Lot {
	received := in.ReceivedAt
	if received.IsZero() {
		received = now
	}
	received = received.Add(time.Duration(index) * time.Millisecond)
	return Lot{
		ID:            uuid.NewString(),
		ProductID:     line.ProductID,
		Size:          line.Size,
		Qty:           line.Qty,
		PurchasePrice: line.PurchasePrice,
		ReceivedAt:    received,
		ReceivedYmd:   in.ReceivedYmd,
		CreatedAt:     received,
		CreatedSeq:    &seq,
		PartnerID:     line.PartnerID,
		PaymentID:     line.PaymentID,
	}
}

// ValidatePool checks every lot's quantity invariants.
func ValidatePool(lots []Lot) error {
	for _, l := range lots {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%w: lot %s qty=%d confirmed=%d", err, l.ID, l.Qty, l.ConfirmedQty)
		}
	}
	return nil
}

// PruneEmpty drops lots whose quantity reached zero.
func PruneEmpty(lots []Lot) []Lot {
	out := make([]Lot, 0, len(lots))
	for _, l := range lots {
		if l.Qty > 0 {
			out = append(out, l)
		}
	}
	return out
}

// FindLot returns the lot with id and its position.
func FindLot(lots []Lot, id string) (Lot, int, bool) {
	for i, l := range lots {
		if l.ID == id {
			return l, i, true
		}
	}
	return Lot{}, -1, false
}

func returnableLot(lots []Lot, lotID string, qty int) (Lot, int, error) {
	if lotID == "" || qty <= 0 {
		return Lot{}, -1, ErrMalformedRequest
	}
	lot, idx, ok := FindLot(lots, lotID)
	if !ok {
		return Lot{}, -1, ErrLotNotFound
	}
	if qty > lot.Returnable() {
		return Lot{}, -1, ErrExceedsReturnable
	}
	return lot, idx, nil
}

// ReturnLot removes qty returnable units from a lot.
func ReturnLot(lots []Lot, lotID string, qty int) ([]Lot, Lot, error) {
	lot, idx, err := returnableLot(lots, lotID, qty)
	if err != nil {
		return cloneLots(lots), Lot{}, err
	}
	next := cloneLots(lots)
	next[idx].Qty -= qty
	return next, lot, nil
}

// ExchangeLot moves qty returnable units of a lot into a new lot of toSize. The new
// lot keeps the source's acquisition date, price and provenance, and takes seq as its
// creation sequence.
func ExchangeLot(lots []Lot, lotID, toSize string, qty int, seq int64, now time.Time) ([]Lot, Lot, error) {
	if toSize == "" {
		return cloneLots(lots), Lot{}, ErrMalformedRequest
	}
	src, idx, err := returnableLot(lots, lotID, qty)
	if err != nil {
		return cloneLots(lots), Lot{}, err
	}
	if src.Size == toSize {
		return cloneLots(lots), Lot{}, ErrSameSize
	}
	next := cloneLots(lots)
	next[idx].Qty -= qty
	moved := Lot{
		ID:            uuid.NewString(),
		ProductID:     src.ProductID,
		Size:          toSize,
		Qty:           qty,
		PurchasePrice: src.PurchasePrice,
		ReceivedAt:    src.ReceivedAt,
		ReceivedYmd:   src.ReceivedYmd,
		CreatedAt:     now,
		CreatedSeq:    &seq,
		PartnerID:     src.PartnerID,
		PaymentID:     src.PaymentID,
	}
	return append(next, moved), moved, nil
}

// ConfirmLot marks qty returnable units of a lot as purchase-confirmed.
func ConfirmLot(lots []Lot, lotID string, qty int) ([]Lot, Lot, error) {
	lot, idx, err := returnableLot(lots, lotID, qty)
	if err != nil {
		return cloneLots(lots), Lot{}, err
	}
	next := cloneLots(lots)
	next[idx].ConfirmedQty += qty
	return next, lot, nil
}

// ReturnDeadline is the last local date on which the lot may be returned.
func ReturnDeadline(l Lot, returnDays int) string {
	recv := l.ReceivedAt.In(Location())
	day := time.Date(recv.Year(), recv.Month(), recv.Day(), 0, 0, 0, 0, Location())
	return day.AddDate(0, 0, returnDays).Format(ymdLayout)
}

// AutoConfirmExpired fully confirms lots whose return deadline is before today. It
// returns the updated pool and the lots that changed, as they were before confirming.
func AutoConfirmExpired(lots []Lot, returnDays func(partnerID string) int, today time.Time) ([]Lot, []Lot) {
	todayYmd := today.In(Location()).Format(ymdLayout)
	next := cloneLots(lots)
	var changed []Lot
	for i, l := range next {
		if l.ReceivedAt.IsZero() || l.Returnable() == 0 {
			continue
		}
		days := 0
		if returnDays != nil {
			days = returnDays(l.PartnerID)
		}
		if todayYmd > ReturnDeadline(l, days) {
			changed = append(changed, l)
			next[i].ConfirmedQty = l.Qty
		}
	}
	return next, changed
}
