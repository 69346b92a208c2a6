// Package ledger derives purchase and sales book entries from the inventory history.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-resale/internal/fee"
	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/partners"
)

// Kind separates sales from purchases.
type Kind string

const (
	// KindSale is revenue from an outbound sale.
	KindSale Kind = "sale"
	// KindPurchase is the cost of an effective purchase row.
	KindPurchase Kind = "purchase"
)

const ymdLayout = "2006-01-02"

var vatDivisor = decimal.RequireFromString("1.1")

// Entry is one ledger line. Amounts are in the owner's currency.
type Entry struct {
	Kind       Kind            `json:"kind"`
	SourceID   string          `json:"source_id"`
	Ymd        string          `json:"ymd"`
	Date       time.Time       `json:"date"`
	ProductID  string          `json:"product_id"`
	Size       string          `json:"size"`
	PartnerID  string          `json:"partner_id,omitempty"`
	Partner    string          `json:"partner"`
	PaymentID  string          `json:"payment_id,omitempty"`
	Qty        int             `json:"qty"`
	Total      decimal.Decimal `json:"total"`
	Supply     decimal.Decimal `json:"supply"`
	VAT        decimal.Decimal `json:"vat"`
	Fee        decimal.Decimal `json:"fee"`
	Settlement decimal.Decimal `json:"settlement"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Invoice    string          `json:"invoice"`
}

// SplitVAT separates a VAT-inclusive total into supply value and VAT. Tax-free
// amounts carry no VAT.
func SplitVAT(total decimal.Decimal, taxFree bool) (supply, vat decimal.Decimal) {
	if taxFree {
		return total, decimal.Zero
	}
	supply = total.Div(vatDivisor).Floor()
	return supply, total.Sub(supply)
}

func invoiceFlag(taxFree bool) string {
	if taxFree {
		return "N"
	}
	return "Y"
}

// PurchaseEntries converts effective purchase rows into ledger entries.
func PurchaseEntries(rows []inventory.PurchaseRow, dir partners.Directory) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		if r.Qty <= 0 {
			continue
		}
		p := dir[r.PartnerID]
		total := decimal.NewFromFloat(r.UnitPurchase).Mul(decimal.NewFromInt(int64(r.Qty)))
		supply, vat := SplitVAT(total, p.TaxFree())
		out = append(out, Entry{
			Kind:      KindPurchase,
			SourceID:  r.ID,
			Ymd:       r.Ymd,
			Date:      r.Date,
			ProductID: r.ProductID,
			Size:      r.Size,
			PartnerID: r.PartnerID,
			Partner:   p.Label(),
			PaymentID: r.PaymentID,
			Qty:       r.Qty,
			Total:     total,
			Supply:    supply,
			VAT:       vat,
			Invoice:   invoiceFlag(p.TaxFree()),
		})
	}
	return out
}

// SaleEntries converts settled sales into ledger entries. Deferred shipments are
// left out until they are priced.
func SaleEntries(sales []inventory.Sale, dir partners.Directory) []Entry {
	out := make([]Entry, 0, len(sales))
	for _, s := range sales {
		if s.Deferred || s.Qty <= 0 {
			continue
		}
		p := dir[s.PartnerID]
		qty := decimal.NewFromInt(int64(s.Qty))
		unit := decimal.NewFromFloat(s.UnitPrice)
		total := unit.Mul(qty)
		charged := fee.Compute(p.Fee, unit).Mul(qty).Round(0)
		supply, vat := SplitVAT(total, p.TaxFree())

		cost := decimal.Zero
		for _, a := range s.Allocations {
			cost = cost.Add(decimal.NewFromFloat(a.PurchasePrice).Mul(decimal.NewFromInt(int64(a.Qty))))
		}
		if cost.IsZero() {
			cost = decimal.NewFromFloat(s.TotalCost)
		}

		out = append(out, Entry{
			Kind:       KindSale,
			SourceID:   s.ID,
			Ymd:        s.Date.In(inventory.Location()).Format(ymdLayout),
			Date:       s.Date,
			ProductID:  s.ProductID,
			Size:       s.Size,
			PartnerID:  s.PartnerID,
			Partner:    p.Label(),
			Qty:        s.Qty,
			Total:      total,
			Supply:     supply,
			VAT:        vat,
			Fee:        charged,
			Settlement: total.Sub(charged),
			CostBasis:  cost,
			Invoice:    invoiceFlag(p.TaxFree()),
		})
	}
	return out
}

// Sort orders entries by local date, then timestamp, then kind.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Ymd != b.Ymd {
			return a.Ymd < b.Ymd
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Kind < b.Kind
	})
}

// Summary totals a period of the ledger.
type Summary struct {
	From          string          `json:"from,omitempty"`
	To            string          `json:"to,omitempty"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
	SalesVAT      decimal.Decimal `json:"sales_vat"`
	Fees          decimal.Decimal `json:"fees"`
	Settlement    decimal.Decimal `json:"settlement"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	GrossMargin   decimal.Decimal `json:"gross_margin"`
	PurchaseTotal decimal.Decimal `json:"purchase_total"`
	PurchaseVAT   decimal.Decimal `json:"purchase_vat"`
	VATEstimate   decimal.Decimal `json:"vat_estimate"`
}

// InRange reports whether ymd falls in [from, to]; empty bounds are open.
func InRange(ymd, from, to string) bool {
	if from != "" && ymd < from {
		return false
	}
	if to != "" && ymd > to {
		return false
	}
	return true
}

// Summarize totals entries dated within [from, to].
func Summarize(entries []Entry, from, to string) Summary {
	sum := Summary{From: from, To: to}
	for _, e := range entries {
		if !InRange(e.Ymd, from, to) {
			continue
		}
		switch e.Kind {
		case KindSale:
			sum.SalesTotal = sum.SalesTotal.Add(e.Total)
			sum.SalesVAT = sum.SalesVAT.Add(e.VAT)
			sum.Fees = sum.Fees.Add(e.Fee)
			sum.Settlement = sum.Settlement.Add(e.Settlement)
			sum.CostBasis = sum.CostBasis.Add(e.CostBasis)
		case KindPurchase:
			sum.PurchaseTotal = sum.PurchaseTotal.Add(e.Total)
			sum.PurchaseVAT = sum.PurchaseVAT.Add(e.VAT)
		}
	}
	sum.GrossMargin = sum.Settlement.Sub(sum.CostBasis)
	sum.VATEstimate = sum.SalesVAT.Sub(sum.PurchaseVAT)
	return sum
}
