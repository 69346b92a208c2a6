package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fifoPool(t *testing.T) []Lot {
	t.Helper()
	return []Lot{
		testLot("other", "q", "260", 4, 50, seoulTime(t, "2024-01-01", 9)),
		testLot("new", "p", "260", 5, 130, seoulTime(t, "2024-03-05", 9)),
		testLot("old", "p", "260", 2, 100, seoulTime(t, "2024-03-01", 9)),
		testLot("mid", "p", "260", 3, 120, seoulTime(t, "2024-03-03", 9)),
		testLot("wrong-size", "p", "270", 9, 90, seoulTime(t, "2024-02-01", 9)),
	}
}

func TestAllocateConsumesOldestFirst(t *testing.T) {
	pool := fifoPool(t)
	res, err := Allocate(pool, "p", "260", 4)
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, []Allocation{
		{LotID: "old", Qty: 2, PurchasePrice: 100},
		{LotID: "mid", Qty: 2, PurchasePrice: 120},
	}, res.Allocations)
	require.InDelta(t, 440.0, res.TotalCost(), 0.0001)

	require.Equal(t, 6, AvailableQty(res.NextLots, "p", "260"))
	mid, _, ok := FindLot(res.NextLots, "mid")
	require.True(t, ok)
	require.Equal(t, 1, mid.Qty)
	_, _, ok = FindLot(res.NextLots, "old")
	require.False(t, ok, "exhausted lots are dropped")

	// Input untouched.
	require.Equal(t, 2, pool[2].Qty)
	require.Equal(t, 3, pool[3].Qty)
}

func TestAllocateConservesQuantity(t *testing.T) {
	pool := fifoPool(t)
	for _, qty := range []int{1, 2, 5, 10} {
		res, err := Allocate(pool, "p", "260", qty)
		require.NoError(t, err)
		allocated := 0
		for _, a := range res.Allocations {
			allocated += a.Qty
		}
		require.Equal(t, qty, allocated)
		require.Equal(t, AvailableQty(pool, "p", "260")-qty, AvailableQty(res.NextLots, "p", "260"))
		require.Equal(t, AvailableQty(pool, "p", "270"), AvailableQty(res.NextLots, "p", "270"))
		require.Equal(t, AvailableQty(pool, "q", "260"), AvailableQty(res.NextLots, "q", "260"))
	}
}

func TestAllocateInsufficientIsAllOrNothing(t *testing.T) {
	pool := fifoPool(t)
	res, err := Allocate(pool, "p", "260", 11)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.True(t, res.Failed())
	require.Empty(t, res.Allocations)
	require.Equal(t, pool, res.NextLots)

	res.NextLots[0].Qty = 99
	require.Equal(t, 4, pool[0].Qty, "rejected pool is a copy")
}

func TestAllocateMalformed(t *testing.T) {
	pool := fifoPool(t)
	for name, tc := range map[string]struct {
		product, size string
		qty           int
	}{
		"missing product": {"", "260", 1},
		"missing size":    {"p", "", 1},
		"zero qty":        {"p", "260", 0},
		"negative qty":    {"p", "260", -2},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Allocate(pool, tc.product, tc.size, tc.qty)
			require.ErrorIs(t, err, ErrMalformedRequest)
			require.True(t, res.Failed())
			require.Equal(t, pool, res.NextLots)
		})
	}
}

func TestAllocateSameTimestampFallsBackToSequence(t *testing.T) {
	at := seoulTime(t, "2024-03-01", 9)
	a := testLot("second", "p", "260", 1, 10, at)
	a.CreatedSeq = seq(2)
	b := testLot("first", "p", "260", 1, 20, at)
	b.CreatedSeq = seq(1)
	res, err := Allocate([]Lot{a, b}, "p", "260", 1)
	require.NoError(t, err)
	require.Equal(t, "first", res.Allocations[0].LotID)
}

func TestAllocateClampsConfirmedQty(t *testing.T) {
	l := testLot("l", "p", "260", 5, 10, seoulTime(t, "2024-03-01", 9))
	l.ConfirmedQty = 5
	res, err := Allocate([]Lot{l}, "p", "260", 3)
	require.NoError(t, err)
	require.Equal(t, 2, res.NextLots[0].Qty)
	require.Equal(t, 2, res.NextLots[0].ConfirmedQty)
	require.NoError(t, ValidatePool(res.NextLots))
}

func TestAvailableQty(t *testing.T) {
	pool := fifoPool(t)
	require.Equal(t, 10, AvailableQty(pool, "p", "260"))
	require.Equal(t, 9, AvailableQty(pool, "p", "270"))
	require.Zero(t, AvailableQty(pool, "p", "280"))
	require.Zero(t, AvailableQty(pool, "", "260"))
	require.Zero(t, AvailableQty(pool, "p", ""))
	require.Zero(t, AvailableQty(nil, "p", "260"))
}
