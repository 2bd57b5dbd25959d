package dcf

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/val/pkg/val/types"
)

func TestCompute_CompoundsProjection(t *testing.T) {
	res, err := Compute(100, 0.10, Assumptions{WACC: 0.08, TerminalGrowth: 0.025, Years: 3})
	require.NoError(t, err)
	require.Len(t, res.Projected, 3)
	assert.InDelta(t, 110, res.Projected[0], 1e-9)
	assert.InDelta(t, 121, res.Projected[1], 1e-9)
	assert.InDelta(t, 133.1, res.Projected[2], 1e-9)
}

func TestCompute_DiscountsEndOfYear(t *testing.T) {
	res, err := Compute(100, 0.10, Assumptions{WACC: 0.08, TerminalGrowth: 0.025, Years: 3})
	require.NoError(t, err)
	require.Len(t, res.Discounted, 3)
	assert.InDelta(t, 110/1.08, res.Discounted[0], 1e-9)
	assert.InDelta(t, 121/(1.08*1.08), res.Discounted[1], 1e-9)
	assert.InDelta(t, 133.1/(1.08*1.08*1.08), res.Discounted[2], 1e-9)
}

func TestCompute_TerminalValue(t *testing.T) {
	res, err := Compute(100, 0.10, Assumptions{WACC: 0.08, TerminalGrowth: 0.025, Years: 3})
	require.NoError(t, err)
	wantTV := 133.1 * 1.025 / (0.08 - 0.025)
	assert.InDelta(t, wantTV, res.TerminalValue, 1e-6)
	assert.InDelta(t, wantTV/math.Pow(1.08, 3), res.DiscountedTerminalValue, 1e-6)
}

func TestCompute_EnterpriseValueIsAdditive(t *testing.T) {
	res, err := Compute(250, 0.07, DefaultAssumptions())
	require.NoError(t, err)

	var forward, backward float64
	for i := range res.Discounted {
		forward += res.Discounted[i]
		backward += res.Discounted[len(res.Discounted)-1-i]
	}
	assert.InDelta(t, forward+res.DiscountedTerminalValue, res.EnterpriseValue, 1e-6)
	assert.InDelta(t, backward+res.DiscountedTerminalValue, res.EnterpriseValue, 1e-6)
	assert.Len(t, res.Projected, DefaultYears)
}

func TestCompute_RejectsDivergentTerminalValue(t *testing.T) {
	tests := []struct {
		name string
		a    Assumptions
	}{
		{name: "equal", a: Assumptions{WACC: 0.05, TerminalGrowth: 0.05, Years: 5}},
		{name: "below", a: Assumptions{WACC: 0.02, TerminalGrowth: 0.05, Years: 5}},
		{name: "no years", a: Assumptions{WACC: 0.08, TerminalGrowth: 0.025, Years: 0}},
		{name: "wacc floor", a: Assumptions{WACC: -1, TerminalGrowth: -2, Years: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(100, 0.1, tt.a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDiscountAssumptions))
			var ae *AssumptionError
			assert.True(t, errors.As(err, &ae))
		})
	}
}

func TestFairValuePerShare(t *testing.T) {
	shares := 50.0
	tests := []struct {
		name    string
		profile types.CompanyProfile
		want    float64
		wantErr bool
	}{
		{
			name:    "reported shares",
			profile: types.CompanyProfile{Symbol: "X", SharesOutstanding: &shares, MarketCap: 1, Price: 1},
			want:    20,
		},
		{
			name:    "derived from market cap",
			profile: types.CompanyProfile{Symbol: "X", MarketCap: 2000, Price: 10},
			want:    1000.0 / 200.0,
		},
		{
			name:    "not derivable",
			profile: types.CompanyProfile{Symbol: "X", MarketCap: 2000},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FairValuePerShare(1000, tt.profile)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoShares)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
