// Package fee computes sales partner commissions.
package fee

import (
	"github.com/shopspring/decimal"
)

// Platform identifies the fee schedule a sales partner uses.
type Platform string

const (
	// PlatformOnline charges a flat percentage of the sale price.
	PlatformOnline Platform = "online"
	// PlatformKream charges a percentage plus a fixed amount.
	PlatformKream Platform = "kream"
	// PlatformPoison charges tiered flat-rate bands.
	PlatformPoison Platform = "poison"
)

// VATMode controls whether VAT is added on top of the fee.
type VATMode string

const (
	// VATIncluded means the fee already contains VAT.
	VATIncluded VATMode = "included"
	// VATSeparate adds 10% VAT to the fee.
	VATSeparate VATMode = "separate"
)

// PoisonGoods selects the goods band table; any other category uses the default table.
const PoisonGoods = "goods"

// Config is the fee configuration of a sales partner.
type Config struct {
	Platform       Platform `json:"platform"`
	OnlinePercent  float64  `json:"online_percent,omitempty"`
	KreamPercent   float64  `json:"kream_percent,omitempty"`
	KreamFixed     float64  `json:"kream_fixed,omitempty"`
	PoisonCategory string   `json:"poison_category,omitempty"`
	VATMode        VATMode  `json:"vat_mode,omitempty"`
}

type band struct {
	floor decimal.Decimal
	flat  decimal.Decimal
	rate  decimal.Decimal
}

var (
	hundred = decimal.NewFromInt(100)
	vatRate = decimal.RequireFromString("1.1")

	poisonGoods = []band{
		{floor: decimal.NewFromInt(322000), flat: decimal.NewFromInt(45000)},
		{floor: decimal.NewFromInt(129000), rate: decimal.RequireFromString("0.14")},
		{floor: decimal.Zero, flat: decimal.NewFromInt(18000)},
	}
	poisonDefault = []band{
		{floor: decimal.NewFromInt(450000), flat: decimal.NewFromInt(45000)},
		{floor: decimal.NewFromInt(150000), rate: decimal.RequireFromString("0.10")},
		{floor: decimal.Zero, flat: decimal.NewFromInt(15000)},
	}
)

// Compute returns the fee charged on one unit sold at salePrice.
func Compute(cfg Config, salePrice decimal.Decimal) decimal.Decimal {
	switch cfg.Platform {
	case PlatformOnline:
		pct := decimal.NewFromFloat(cfg.OnlinePercent).Div(hundred)
		return withVAT(cfg, salePrice.Mul(pct))
	case PlatformKream:
		pct := decimal.NewFromFloat(cfg.KreamPercent).Div(hundred)
		return withVAT(cfg, salePrice.Mul(pct).Add(decimal.NewFromFloat(cfg.KreamFixed)))
	case PlatformPoison:
		table := poisonDefault
		if cfg.PoisonCategory == PoisonGoods {
			table = poisonGoods
		}
		for _, b := range table {
			if salePrice.GreaterThanOrEqual(b.floor) {
				if b.rate.IsZero() {
					return b.flat
				}
				return salePrice.Mul(b.rate)
			}
		}
	}
	return decimal.Zero
}

func withVAT(cfg Config, amount decimal.Decimal) decimal.Decimal {
	if cfg.VATMode == VATSeparate {
		return amount.Mul(vatRate)
	}
	return amount
}
