package growth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/val/pkg/val/types"
)

func f(v float64) *float64 { return &v }

func TestEstimate_MeanOfYearOverYearChanges(t *testing.T) {
	history := []float64{100, 110, 99, 148.5}
	// rates: 0.10, -0.10, 0.50
	assert.InDelta(t, 0.5/3, Estimate(history), 1e-12)
}

func TestEstimate_NegativePriorUsesAbsoluteValue(t *testing.T) {
	// (-50 - -100) / 100 = 0.5
	assert.InDelta(t, 0.5, Estimate([]float64{-100, -50}), 1e-12)
}

func TestEstimate_ShortHistoryDefaults(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
	}{
		{name: "nil", history: nil},
		{name: "empty", history: []float64{}},
		{name: "single", history: []float64{42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := EstimateWithReport(tt.history)
			assert.Equal(t, DefaultGrowth, rep.Rate)
			assert.True(t, rep.Defaulted)
		})
	}
}

func TestEstimate_ZeroPriorContributesZero(t *testing.T) {
	rep := EstimateWithReport([]float64{0, 100, 150})
	require.Len(t, rep.Rates, 2)
	assert.Equal(t, 0.0, rep.Rates[0])
	assert.InDelta(t, 0.5, rep.Rates[1], 1e-12)
	assert.InDelta(t, 0.25, rep.Rate, 1e-12)
	assert.False(t, math.IsNaN(rep.Rate))
}

func TestEstimate_AllZeroHistoryIsZeroNotDefault(t *testing.T) {
	rep := EstimateWithReport([]float64{0, 0, 0})
	assert.False(t, rep.Defaulted)
	assert.Equal(t, 0.0, rep.Rate)
}

func TestEstimate_NonFiniteRatesDiscarded(t *testing.T) {
	rep := EstimateWithReport([]float64{100, math.Inf(1), 200})
	// 100 -> +Inf is +Inf (dropped); +Inf -> 200 is NaN (dropped)
	assert.True(t, rep.Defaulted)
	assert.Equal(t, DefaultGrowth, rep.Rate)
}

func TestCleanHistory_ReversesAndDropsMissing(t *testing.T) {
	records := []types.CashFlowRecord{
		{Date: "2024", FreeCashFlow: f(500)},
		{Date: "2023", FreeCashFlow: nil},
		{Date: "2022", FreeCashFlow: f(400)},
		{Date: "2021", FreeCashFlow: f(math.NaN())},
		{Date: "2020", FreeCashFlow: f(300)},
	}
	assert.Equal(t, []float64{300, 400, 500}, CleanHistory(records, 5))
}

func TestCleanHistory_LimitsToNewestYears(t *testing.T) {
	records := []types.CashFlowRecord{
		{FreeCashFlow: f(6)}, {FreeCashFlow: f(5)}, {FreeCashFlow: f(4)},
		{FreeCashFlow: f(3)}, {FreeCashFlow: f(2)}, {FreeCashFlow: f(1)},
	}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, CleanHistory(records, 5))
	assert.Len(t, CleanHistory(records, 0), 6)
}
