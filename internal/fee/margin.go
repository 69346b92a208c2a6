package fee

import "github.com/shopspring/decimal"

// Preview is the expected margin of a sale before it is committed.
type Preview struct {
	Qty        int             `json:"qty"`
	Revenue    decimal.Decimal `json:"revenue"`
	FeePerUnit decimal.Decimal `json:"fee_per_unit"`
	TotalFee   decimal.Decimal `json:"total_fee"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Margin     decimal.Decimal `json:"margin"`
}

// Margin is revenue minus partner fees minus the cost basis of the allocated lots.
func Margin(cfg Config, qty int, unitPrice, costBasis decimal.Decimal) Preview {
	if qty <= 0 || unitPrice.IsZero() {
		return Preview{Qty: qty, CostBasis: costBasis}
	}
	q := decimal.NewFromInt(int64(qty))
	perUnit := Compute(cfg, unitPrice)
	revenue := unitPrice.Mul(q)
	totalFee := perUnit.Mul(q)
	return Preview{
		Qty:        qty,
		Revenue:    revenue,
		FeePerUnit: perUnit,
		TotalFee:   totalFee,
		CostBasis:  costBasis,
		Margin:     revenue.Sub(totalFee).Sub(costBasis),
	}
}
