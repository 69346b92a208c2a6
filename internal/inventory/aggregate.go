package inventory

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// costPlaces is the precision of stored purchase prices and reported averages.
const costPlaces = 2

type sizeBucket struct {
	size  string
	items []indexedLot
}

type productBucket struct {
	product Product
	order   []string
	sizes   map[string]*sizeBucket
}

// ComputeAggregated folds lots into per-product and per-size rollups. Sizes follow
// the product's declared order, or first appearance when it declares none. Rows are
// ordered by product code, then name.
func ComputeAggregated(products []Product, lots []Lot) []AggregateRow {
	catalog := make(map[string]Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	buckets := make(map[string]*productBucket)
	var seen []string
	for i, l := range lots {
		if l.ProductID == "" {
			continue
		}
		b, ok := buckets[l.ProductID]
		if !ok {
			p, found := catalog[l.ProductID]
			if !found {
				p = Product{ID: l.ProductID}
			}
			b = &productBucket{product: p, sizes: make(map[string]*sizeBucket)}
			buckets[l.ProductID] = b
			seen = append(seen, l.ProductID)
		}
		s, ok := b.sizes[l.Size]
		if !ok {
			s = &sizeBucket{size: l.Size}
			b.sizes[l.Size] = s
			b.order = append(b.order, l.Size)
		}
		s.items = append(s.items, indexedLot{lot: l, idx: i})
	}

	rows := make([]AggregateRow, 0, len(buckets))
	for _, pid := range seen {
		rows = append(rows, rollupProduct(buckets[pid]))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := strings.Compare(rows[i].Code, rows[j].Code); c != 0 {
			return c < 0
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func rollupProduct(b *productBucket) AggregateRow {
	order := sizeOrder(b.product.Sizes, b.order)
	row := AggregateRow{
		ID:       b.product.ID,
		Code:     b.product.Code,
		Name:     b.product.Name,
		Brand:    b.product.Brand,
		Category: b.product.Category,
		Sizes:    make([]SizeRollup, 0, len(order)),
	}
	productCost := decimal.Zero
	for _, size := range order {
		bucket, ok := b.sizes[size]
		if !ok {
			bucket = &sizeBucket{size: size}
		}
		rollup, cost := rollupSize(bucket)
		row.Sizes = append(row.Sizes, rollup)
		row.Qty += rollup.Qty
		productCost = productCost.Add(cost)
	}
	row.AvgUnitCost = average(productCost, row.Qty)
	return row
}

// sizeOrder lists declared sizes first; stocked sizes the catalog does not declare
// follow in order of appearance so their quantity still counts.
func sizeOrder(declared, encountered []string) []string {
	if len(declared) == 0 {
		return encountered
	}
	order := make([]string, 0, len(declared)+len(encountered))
	known := make(map[string]struct{}, len(declared))
	for _, s := range declared {
		if _, dup := known[s]; dup {
			continue
		}
		known[s] = struct{}{}
		order = append(order, s)
	}
	for _, s := range encountered {
		if _, ok := known[s]; !ok {
			order = append(order, s)
		}
	}
	return order
}

func rollupSize(b *sizeBucket) (SizeRollup, decimal.Decimal) {
	sortIndexed(b.items)
	rollup := SizeRollup{Size: b.size, Lots: make([]LotView, 0, len(b.items))}
	cost := decimal.Zero
	for _, item := range b.items {
		rollup.Qty += item.lot.Qty
		cost = cost.Add(lineCost(item.lot.Qty, item.lot.PurchasePrice))
		lot := item.lot
		lot.CreatedSeq = cloneSeq(lot.CreatedSeq)
		rollup.Lots = append(rollup.Lots, LotView{Lot: lot, DisplayDate: lot.DisplayDate()})
	}
	rollup.AvgUnitCost = average(cost, rollup.Qty)
	return rollup, cost
}

func lineCost(qty int, unit float64) decimal.Decimal {
	return decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(qty)))
}

// average is the cost-weighted unit cost rounded to costPlaces; 0 for an empty rollup.
func average(cost decimal.Decimal, qty int) float64 {
	if qty <= 0 {
		return 0
	}
	return cost.DivRound(decimal.NewFromInt(int64(qty)), costPlaces).InexactFloat64()
}
