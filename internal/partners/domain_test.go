package partners

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	dir := NewDirectory([]Partner{
		{ID: "a", Name: "Alpha", BizName: "Alpha Ltd", ReturnDays: 7},
		{ID: "b", Name: "Beta", TaxType: TaxTypeTaxFree},
	})
	require.Equal(t, 7, dir.ReturnDays("a"))
	require.Zero(t, dir.ReturnDays("missing"))
	require.Equal(t, "Alpha(Alpha Ltd)", dir["a"].Label())
	require.Equal(t, "Beta", dir["b"].Label())
	require.Equal(t, "-", Partner{}.Label())
	require.True(t, dir["b"].TaxFree())
	require.False(t, dir["a"].TaxFree())
}
