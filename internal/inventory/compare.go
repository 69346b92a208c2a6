package inventory

import (
	"math"
	"sort"
	"sync/atomic"
	"time"
	_ "time/tzdata"
)

const ymdLayout = "2006-01-02"

var location atomic.Pointer[time.Location]

func init() {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.Local
	}
	location.Store(loc)
}

// SetLocation sets the zone used to derive local received dates.
func SetLocation(loc *time.Location) {
	if loc != nil {
		location.Store(loc)
	}
}

// Location returns the zone used to derive local received dates.
func Location() *time.Location {
	return location.Load()
}

func localYmd(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(Location()).Format(ymdLayout)
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func seqKey(seq *int64) int64 {
	if seq == nil {
		return math.MaxInt64
	}
	return *seq
}

// CompareLots orders lots oldest first. Keys, first difference wins: display date,
// received timestamp, creation sequence (missing sorts last), creation timestamp and
// finally the position in the input collection.
func CompareLots(a, b Lot, idxA, idxB int) int {
	if da, db := a.DisplayDate(), b.DisplayDate(); da != db {
		if da < db {
			return -1
		}
		return 1
	}
	if c := cmpInt64(epochMillis(a.ReceivedAt), epochMillis(b.ReceivedAt)); c != 0 {
		return c
	}
	if c := cmpInt64(seqKey(a.CreatedSeq), seqKey(b.CreatedSeq)); c != 0 {
		return c
	}
	if c := cmpInt64(epochMillis(a.CreatedAt), epochMillis(b.CreatedAt)); c != 0 {
		return c
	}
	return cmpInt64(int64(idxA), int64(idxB))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type indexedLot struct {
	lot Lot
	idx int
}

func sortIndexed(items []indexedLot) {
	sort.SliceStable(items, func(i, j int) bool {
		return CompareLots(items[i].lot, items[j].lot, items[i].idx, items[j].idx) < 0
	})
}

// SortLots returns a copy of lots in FIFO order.
func SortLots(lots []Lot) []Lot {
	items := make([]indexedLot, len(lots))
	for i, l := range lots {
		items[i] = indexedLot{lot: l, idx: i}
	}
	sortIndexed(items)
	out := make([]Lot, len(items))
	for i, item := range items {
		out[i] = item.lot
	}
	return out
}

func cloneLots(lots []Lot) []Lot {
	out := make([]Lot, len(lots))
	copy(out, lots)
	for i := range out {
		out[i].CreatedSeq = cloneSeq(out[i].CreatedSeq)
	}
	return out
}

func cloneSeq(seq *int64) *int64 {
	if seq == nil {
		return nil
	}
	v := *seq
	return &v
}
