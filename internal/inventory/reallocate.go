package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// DriftPolicy selects how returns or exchanges larger than the recorded purchase
// history are handled.
type DriftPolicy string

const (
	// DriftIgnore absorbs what it can and drops the rest silently.
	DriftIgnore DriftPolicy = "ignore"
	// DriftReport absorbs what it can and reports the shortfall.
	DriftReport DriftPolicy = "report"
	// DriftStrict rejects the reconstruction.
	DriftStrict DriftPolicy = "strict"
)

// ParseDriftPolicy maps a configuration value to a policy, defaulting to DriftIgnore.
func ParseDriftPolicy(v string) (DriftPolicy, error) {
	switch p := DriftPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "", DriftIgnore:
		return DriftIgnore, nil
	case DriftReport, DriftStrict:
		return p, nil
	}
	return "", fmt.Errorf("inventory: unknown drift policy %q", v)
}

// Drift describes an event whose quantity exceeded the available purchase history.
type Drift struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	ProductID string    `json:"product_id"`
	Size      string    `json:"size"`
	Requested int       `json:"requested"`
	Absorbed  int       `json:"absorbed"`
}

// Reconstruction holds effective purchase rows and any drift encountered.
type Reconstruction struct {
	Rows   []PurchaseRow `json:"rows"`
	Drifts []Drift       `json:"drifts,omitempty"`
}

type workRow struct {
	row      PurchaseRow
	ord      int
	returned int
	movedOut int
}

func (w *workRow) headroom() int {
	return max(0, w.row.Qty-w.returned-w.movedOut)
}

func fifoLess(a, b *workRow) bool {
	if a.row.Ymd != b.row.Ymd {
		return a.row.Ymd < b.row.Ymd
	}
	if !a.row.Date.Equal(b.row.Date) {
		return a.row.Date.Before(b.row.Date)
	}
	return a.ord < b.ord
}

// ReconstructPurchaseRows derives effective purchase rows from the IO log, silently
// truncating returns or exchanges that exceed the recorded purchases.
func ReconstructPurchaseRows(events []Event) []PurchaseRow {
	rec, _ := Reconstruct(events, DriftIgnore)
	return rec.Rows
}

// Reconstruct derives effective purchase rows from the IO log in two passes: every
// return first, then every exchange, each pass in log order. Returns consume the
// oldest matching purchase rows; exchanges move the remaining quantity into
// synthetic rows of the new size that keep the source row's purchase date. The
// event log is never modified.
func Reconstruct(events []Event, policy DriftPolicy) (Reconstruction, error) {
	var work []*workRow
	for _, ev := range events {
		if ev.Type != EventInbound {
			continue
		}
		work = append(work, &workRow{
			ord: len(work),
			row: PurchaseRow{
				ID:           ev.ID,
				SourceID:     ev.ID,
				ProductID:    ev.ProductID,
				Size:         ev.Size,
				Ymd:          localYmd(ev.Date),
				Date:         ev.Date,
				Qty:          ev.Qty,
				UnitPurchase: ev.UnitPurchase,
				PartnerID:    ev.PartnerID,
				PaymentID:    ev.PaymentID,
			},
		})
	}

	fifoRows := func(productID, size string) []*workRow {
		var out []*workRow
		for _, w := range work {
			if w.row.ProductID == productID && w.row.Size == size {
				out = append(out, w)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return fifoLess(out[i], out[j]) })
		return out
	}

	// apply consumes ev and returns the unabsorbed quantity and the size it drew from.
	apply := func(ev Event) (int, string) {
		need := max(0, ev.Qty)
		switch ev.Type {
		case EventReturn:
			for _, w := range fifoRows(ev.ProductID, ev.Size) {
				take := min(w.headroom(), need)
				if take <= 0 {
					continue
				}
				w.returned += take
				need -= take
				if need == 0 {
					break
				}
			}
			return need, ev.Size
		case EventExchange:
			for _, w := range fifoRows(ev.ProductID, ev.FromSize) {
				move := min(w.headroom(), need)
				if move <= 0 {
					continue
				}
				w.movedOut += move
				synthetic := w.row
				synthetic.ID = fmt.Sprintf("%s~x%s", w.row.ID, ev.ID)
				synthetic.Synthetic = true
				synthetic.Size = ev.ToSize
				synthetic.Qty = move
				work = append(work, &workRow{row: synthetic, ord: len(work)})
				need -= move
				if need == 0 {
					break
				}
			}
			return need, ev.FromSize
		}
		return 0, ""
	}

	var drifts []Drift
	for _, pass := range []EventType{EventReturn, EventExchange} {
		for _, ev := range events {
			if ev.Type != pass || ev.Qty <= 0 || ev.ProductID == "" {
				continue
			}
			if ev.Type == EventExchange && (ev.FromSize == "" || ev.ToSize == "") {
				continue
			}
			need, size := apply(ev)
			if need == 0 {
				continue
			}
			switch policy {
			case DriftStrict:
				return Reconstruction{}, fmt.Errorf("%w: %s event %s short by %d", ErrReconciliationDrift, ev.Type, ev.ID, need)
			case DriftReport:
				drifts = append(drifts, Drift{
					EventID:   ev.ID,
					Type:      ev.Type,
					ProductID: ev.ProductID,
					Size:      size,
					Requested: ev.Qty,
					Absorbed:  ev.Qty - need,
				})
			}
		}
	}

	sort.SliceStable(work, func(i, j int) bool { return fifoLess(work[i], work[j]) })
	rows := make([]PurchaseRow, 0, len(work))
	for _, w := range work {
		effective := w.row.Qty - w.returned - w.movedOut
		if effective <= 0 {
			continue
		}
		row := w.row
		row.Qty = effective
		rows = append(rows, row)
	}
	return Reconstruction{Rows: rows, Drifts: drifts}, nil
}
