package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		price int64
		want  string
	}{
		{"online", Config{Platform: PlatformOnline, OnlinePercent: 12}, 100000, "12000"},
		{"online vat separate", Config{Platform: PlatformOnline, OnlinePercent: 10, VATMode: VATSeparate}, 100000, "11000"},
		{"kream", Config{Platform: PlatformKream, KreamPercent: 5, KreamFixed: 2500}, 200000, "12500"},
		{"kream vat separate", Config{Platform: PlatformKream, KreamPercent: 5, KreamFixed: 2500, VATMode: VATSeparate}, 200000, "13750"},
		{"poison goods top band", Config{Platform: PlatformPoison, PoisonCategory: PoisonGoods}, 322000, "45000"},
		{"poison goods rate band", Config{Platform: PlatformPoison, PoisonCategory: PoisonGoods}, 200000, "28000"},
		{"poison goods floor band", Config{Platform: PlatformPoison, PoisonCategory: PoisonGoods}, 100000, "18000"},
		{"poison default top band", Config{Platform: PlatformPoison}, 500000, "45000"},
		{"poison default rate band", Config{Platform: PlatformPoison}, 150000, "15000"},
		{"poison default floor band", Config{Platform: PlatformPoison}, 149999, "15000"},
		{"unknown platform", Config{Platform: "market"}, 100000, "0"},
		{"zero config", Config{}, 100000, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.cfg, decimal.NewFromInt(tc.price))
			require.Truef(t, decimal.RequireFromString(tc.want).Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestMargin(t *testing.T) {
	cfg := Config{Platform: PlatformOnline, OnlinePercent: 10}
	p := Margin(cfg, 2, decimal.NewFromInt(100000), decimal.NewFromInt(150000))
	require.Equal(t, 2, p.Qty)
	require.True(t, decimal.NewFromInt(200000).Equal(p.Revenue))
	require.True(t, decimal.NewFromInt(10000).Equal(p.FeePerUnit))
	require.True(t, decimal.NewFromInt(20000).Equal(p.TotalFee))
	require.True(t, decimal.NewFromInt(30000).Equal(p.Margin))

	empty := Margin(cfg, 2, decimal.Zero, decimal.NewFromInt(150000))
	require.True(t, empty.Revenue.IsZero())
	require.True(t, decimal.NewFromInt(150000).Equal(empty.CostBasis))
}
