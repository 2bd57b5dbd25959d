// Package peers selects comparable companies and averages their multiples.
package peers

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/komsit37/val/pkg/val/filter"
	"github.com/komsit37/val/pkg/val/types"
)

// DefaultMax caps how many peers are considered per analysis.
const DefaultMax = 5

// DefaultAllow mirrors the symbols available on the provider's free tier.
const DefaultAllow = "AAPL,MSFT,GOOGL,AMZN,META,NVDA,TSLA,NFLX,INTC,AMD,ORCL,IBM,CSCO,ADBE,CRM,QCOM,TXN,AVGO"

// Sanity bounds, exclusive on both ends.
const (
	MaxPE         = 100.0
	MaxEVToEBITDA = 50.0
	MaxEVToSales  = 20.0
)

// CounterMode selects the divisor used for each sector average.
type CounterMode int

const (
	// CounterIndependent divides each ratio by the number of peers whose
	// own ratio passed its bound.
	CounterIndependent CounterMode = iota
	// CounterShared divides all three ratios by the number of peers whose
	// P/E passed.
	CounterShared
)

func (m CounterMode) String() string {
	switch m {
	case CounterShared:
		return "shared"
	default:
		return "independent"
	}
}

// ParseCounterMode accepts "independent" or "shared".
func ParseCounterMode(s string) (CounterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "independent":
		return CounterIndependent, nil
	case "shared":
		return CounterShared, nil
	}
	return CounterIndependent, fmt.Errorf("unknown counter mode %q (want independent or shared)", s)
}

// AllowList decides which peer symbols may be queried.
type AllowList = filter.Filter

// ParseAllowList builds an AllowList from a comma list, glob or /regex/.
func ParseAllowList(expr string) (AllowList, error) {
	return filter.ParseSymbols(expr)
}

// Select normalizes candidate peers and splits them into symbols to query
// and excluded rows. The analyzed symbol and duplicates are dropped, then
// the list is capped at max before the allow-list is applied.
func Select(candidates []string, self string, allow AllowList, max int) ([]string, []types.PeerRatio) {
	if max <= 0 {
		max = DefaultMax
	}
	self = strings.ToUpper(strings.TrimSpace(self))
	seen := map[string]struct{}{}
	capped := make([]string, 0, max)
	for _, c := range candidates {
		sym := strings.ToUpper(strings.TrimSpace(c))
		if sym == "" || sym == self {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		capped = append(capped, sym)
		if len(capped) == max {
			break
		}
	}

	var query []string
	var excluded []types.PeerRatio
	for _, sym := range capped {
		if allow != nil && allow.Match(sym) {
			query = append(query, sym)
			continue
		}
		excluded = append(excluded, types.PeerRatio{Symbol: sym, Reason: types.ReasonNotAllowed})
	}
	return query, excluded
}

// FromRatio turns a fetched ratio record into a peer row.
func FromRatio(r types.RatioRecord) types.PeerRatio {
	return types.PeerRatio{
		Symbol:     r.Symbol,
		PE:         r.PE,
		EVToEBITDA: r.EVToEBITDA,
		EVToSales:  r.EVToSales,
		HasData:    true,
	}
}

func inBound(v *float64, max float64) bool {
	return v != nil && *v > 0 && *v < max
}

// SectorAverages averages peer multiples that pass the sanity bounds. Only
// rows with HasData participate. An average with a zero divisor is 0.
func SectorAverages(records []types.PeerRatio, mode CounterMode) types.SectorAverages {
	var pe, ebitda, sales []float64
	for _, r := range records {
		if !r.HasData {
			continue
		}
		if inBound(r.PE, MaxPE) {
			pe = append(pe, *r.PE)
		}
		if inBound(r.EVToEBITDA, MaxEVToEBITDA) {
			ebitda = append(ebitda, *r.EVToEBITDA)
		}
		if inBound(r.EVToSales, MaxEVToSales) {
			sales = append(sales, *r.EVToSales)
		}
	}

	out := types.SectorAverages{
		PECount:         len(pe),
		EVToEBITDACount: len(ebitda),
		EVToSalesCount:  len(sales),
	}
	if mode == CounterShared {
		out.EVToEBITDACount = len(pe)
		out.EVToSalesCount = len(pe)
	}
	out.PE = average(pe, out.PECount)
	out.EVToEBITDA = average(ebitda, out.EVToEBITDACount)
	out.EVToSales = average(sales, out.EVToSalesCount)
	return out
}

func average(values []float64, divisor int) float64 {
	if divisor == 0 || len(values) == 0 {
		return 0
	}
	if divisor == len(values) {
		return stat.Mean(values, nil)
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(divisor)
}
