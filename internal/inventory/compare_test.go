package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seq(v int64) *int64 { return &v }

func seoulTime(t *testing.T, ymd string, hour int) time.Time {
	t.Helper()
	day, err := time.ParseInLocation(ymdLayout, ymd, Location())
	require.NoError(t, err)
	return day.Add(time.Duration(hour) * time.Hour)
}

func testLot(id, productID, size string, qty int, price float64, received time.Time) Lot {
	return Lot{ID: id, ProductID: productID, Size: size, Qty: qty, PurchasePrice: price, ReceivedAt: received, CreatedAt: received}
}

func lotIDs(lots []Lot) []string {
	ids := make([]string, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestCompareLotsDisplayDateDominates(t *testing.T) {
	backdated := testLot("a", "p", "260", 1, 0, seoulTime(t, "2024-03-05", 9))
	backdated.ReceivedYmd = "2024-03-01"
	plain := testLot("b", "p", "260", 1, 0, seoulTime(t, "2024-03-02", 9))
	require.Equal(t, -1, CompareLots(backdated, plain, 1, 0))
	require.Equal(t, 1, CompareLots(plain, backdated, 0, 1))
}

func TestCompareLotsTieBreakers(t *testing.T) {
	at := seoulTime(t, "2024-03-01", 10)

	a := testLot("a", "p", "260", 1, 0, at)
	b := testLot("b", "p", "260", 1, 0, at.Add(time.Millisecond))
	require.Equal(t, -1, CompareLots(a, b, 1, 0), "received timestamp")

	b.ReceivedAt = at
	a.CreatedSeq = seq(7)
	b.CreatedSeq = seq(3)
	require.Equal(t, 1, CompareLots(a, b, 0, 1), "creation sequence")

	b.CreatedSeq = nil
	require.Equal(t, -1, CompareLots(a, b, 1, 0), "missing sequence sorts last")

	a.CreatedSeq = nil
	a.CreatedAt = at.Add(time.Second)
	require.Equal(t, 1, CompareLots(a, b, 0, 1), "creation timestamp")

	a.CreatedAt = b.CreatedAt
	require.Equal(t, -1, CompareLots(a, b, 0, 1), "input position")
	require.Equal(t, 1, CompareLots(a, b, 3, 1))
	require.Zero(t, CompareLots(a, a, 2, 2))
}

func TestCompareLotsZeroTimesSortFirst(t *testing.T) {
	a := Lot{ID: "a", ReceivedYmd: "2024-03-01"}
	b := testLot("b", "p", "260", 1, 0, seoulTime(t, "2024-03-01", 10))
	require.Equal(t, -1, CompareLots(a, b, 1, 0))
}

func TestSortLotsIsStableAndDoesNotMutate(t *testing.T) {
	at := seoulTime(t, "2024-03-01", 10)
	lots := []Lot{
		testLot("c", "p", "260", 1, 0, at.Add(2*time.Hour)),
		testLot("a", "p", "260", 1, 0, at),
		testLot("b1", "p", "260", 1, 0, at.Add(time.Hour)),
		testLot("b2", "p", "260", 1, 0, at.Add(time.Hour)),
	}
	sorted := SortLots(lots)
	require.Equal(t, []string{"a", "b1", "b2", "c"}, lotIDs(sorted))
	require.Equal(t, []string{"c", "a", "b1", "b2"}, lotIDs(lots))
}

func TestDisplayDateUsesConfiguredZone(t *testing.T) {
	// 2024-03-01 20:00 UTC is already March 2nd in Seoul.
	l := Lot{ReceivedAt: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
	require.Equal(t, "2024-03-02", l.DisplayDate())
	l.ReceivedYmd = "2024-02-28"
	require.Equal(t, "2024-02-28", l.DisplayDate())
	require.Equal(t, "", Lot{}.DisplayDate())
}
