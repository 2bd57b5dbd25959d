// Package growth derives a representative annual growth rate from a trailing
// free-cash-flow history.
package growth

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/komsit37/val/pkg/val/types"
)

// DefaultGrowth is used when the history yields no usable year-over-year rate.
const DefaultGrowth = 0.05

// DefaultHistoryYears is how many annual statements feed the estimate.
const DefaultHistoryYears = 5

// Report describes how an estimate was reached.
type Report struct {
	Rate      float64
	Rates     []float64
	Defaulted bool
}

// CleanHistory takes at most years of the newest records (providers return
// newest first), drops missing or non-finite values and returns the series
// oldest first.
func CleanHistory(records []types.CashFlowRecord, years int) []float64 {
	if years > 0 && len(records) > years {
		records = records[:years]
	}
	out := make([]float64, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		v := records[i].FreeCashFlow
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		out = append(out, *v)
	}
	return out
}

// Estimate returns the mean year-over-year change of history, which must be
// ordered oldest first. A zero prior value contributes a rate of 0.
func Estimate(history []float64) float64 {
	return EstimateWithReport(history).Rate
}

// EstimateWithReport is Estimate plus the individual rates used.
func EstimateWithReport(history []float64) Report {
	rates := make([]float64, 0, len(history))
	for i := 1; i < len(history); i++ {
		prev, curr := history[i-1], history[i]
		rate := 0.0
		if prev != 0 {
			rate = (curr - prev) / math.Abs(prev)
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		rates = append(rates, rate)
	}
	if len(rates) == 0 {
		return Report{Rate: DefaultGrowth, Defaulted: true}
	}
	return Report{Rate: stat.Mean(rates, nil), Rates: rates}
}
