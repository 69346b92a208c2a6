package inventory

import (
	"fmt"
	"testing"
	"time"
)

func benchPool(n int) []Lot {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := make([]Lot, 0, n)
	for i := range n {
		received := base.Add(time.Duration(n-i) * time.Hour)
		seq := int64(i)
		lots = append(lots, Lot{
			ID:            fmt.Sprintf("lot-%05d", i),
			ProductID:     fmt.Sprintf("p%02d", i%20),
			Size:          []string{"250", "260", "270"}[i%3],
			Qty:           1 + i%4,
			PurchasePrice: float64(100 + i%50),
			ReceivedAt:    received,
			CreatedAt:     received,
			CreatedSeq:    &seq,
		})
	}
	return lots
}

func BenchmarkAllocate(b *testing.B) {
	lots := benchPool(5000)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := Allocate(lots, "p07", "260", 3); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComputeAggregated(b *testing.B) {
	lots := benchPool(5000)
	products := make([]Product, 0, 20)
	for i := range 20 {
		products = append(products, Product{ID: fmt.Sprintf("p%02d", i), Code: fmt.Sprintf("C%02d", i), Sizes: []string{"250", "260", "270"}})
	}
	b.ReportAllocs()
	for b.Loop() {
		_ = ComputeAggregated(products, lots)
	}
}

func TestAllocateLatencyBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("latency budget skipped in short mode")
	}
	lots := benchPool(5000)
	start := time.Now()
	for range 100 {
		if _, err := Allocate(lots, "p07", "260", 3); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start) / 100; elapsed > 50*time.Millisecond {
		t.Fatalf("allocate regression: %s per call over 5000 lots", elapsed)
	}
}
