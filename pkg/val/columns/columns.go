package columns

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/komsit37/val/pkg/val/types"
)

// Unavailable is shown for peers without data.
const Unavailable = "unavailable"

// Resolver converts a peer row into the cell value for one column.
type Resolver func(row types.PeerRatio, avg types.SectorAverages) string

// Def describes a peer table column.
type Def struct {
	Header     string
	AlignRight bool
	Resolve    Resolver
}

// Registry maps column keys to definitions.
var Registry = map[string]Def{}

// Default is the peer table layout when no columns are requested.
var Default = []string{"sym", "status", "pe", "ev_ebitda", "ev_sales"}

func init() {
	Registry["sym"] = Def{Header: "SYM", Resolve: func(row types.PeerRatio, _ types.SectorAverages) string {
		return row.Symbol
	}}
	Registry["status"] = Def{Header: "STATUS", Resolve: func(row types.PeerRatio, _ types.SectorAverages) string {
		if row.HasData {
			return "ok"
		}
		if row.Reason != "" {
			return Unavailable + " (" + row.Reason + ")"
		}
		return Unavailable
	}}
	Registry["pe"] = ratioDef("P/E", func(r types.PeerRatio) *float64 { return r.PE })
	Registry["ev_ebitda"] = ratioDef("EV/EBITDA", func(r types.PeerRatio) *float64 { return r.EVToEBITDA })
	Registry["ev_sales"] = ratioDef("EV/SALES", func(r types.PeerRatio) *float64 { return r.EVToSales })
	Registry["pe_vs_sector"] = relativeDef("P/E VS SECTOR",
		func(r types.PeerRatio) *float64 { return r.PE },
		func(a types.SectorAverages) float64 { return a.PE })
	Registry["ev_ebitda_vs_sector"] = relativeDef("EV/EBITDA VS SECTOR",
		func(r types.PeerRatio) *float64 { return r.EVToEBITDA },
		func(a types.SectorAverages) float64 { return a.EVToEBITDA })
	Registry["ev_sales_vs_sector"] = relativeDef("EV/SALES VS SECTOR",
		func(r types.PeerRatio) *float64 { return r.EVToSales },
		func(a types.SectorAverages) float64 { return a.EVToSales })
}

func ratioDef(header string, get func(types.PeerRatio) *float64) Def {
	return Def{Header: header, AlignRight: true, Resolve: func(row types.PeerRatio, _ types.SectorAverages) string {
		if !row.HasData {
			return "-"
		}
		v := get(row)
		if v == nil {
			return "n/a"
		}
		return FormatFloat(*v, 2)
	}}
}

// relativeDef renders a peer's premium (+) or discount (-) to the sector
// average of the same ratio.
func relativeDef(header string, get func(types.PeerRatio) *float64, avg func(types.SectorAverages) float64) Def {
	return Def{Header: header, AlignRight: true, Resolve: func(row types.PeerRatio, a types.SectorAverages) string {
		v := get(row)
		base := avg(a)
		if !row.HasData || v == nil || base == 0 {
			return "-"
		}
		return FormatPercent(*v/base-1, 1)
	}}
}

// Compute returns the column keys to render: explicit keys deduplicated in
// order, or Default when none are given. Unknown keys are an error.
func Compute(explicit []string) ([]string, error) {
	if len(explicit) == 0 {
		return append([]string(nil), Default...), nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(explicit))
	for _, k := range explicit {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := Registry[k]; !ok {
			return nil, &UnknownColumnError{Name: k, Available: availableColumns()}
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// Header returns the display header of a column.
func Header(col string) string {
	if d, ok := Registry[col]; ok {
		return d.Header
	}
	return strings.ToUpper(col)
}

// RenderValue resolves one cell.
func RenderValue(col string, row types.PeerRatio, avg types.SectorAverages) string {
	if d, ok := Registry[col]; ok {
		return d.Resolve(row, avg)
	}
	return ""
}

// UnknownColumnError reports an unknown column key.
type UnknownColumnError struct {
	Name      string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return "unknown column: " + e.Name + "; available: " + strings.Join(e.Available, ", ")
}

func availableColumns() []string {
	keys := make([]string, 0, len(Registry))
	for k := range Registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatFloat formats v with fixed decimals and comma thousand separators.
func FormatFloat(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	s := fmt.Sprintf("%.*f", decimals, v)
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	n := len(intPart)
	if n <= 3 {
		return sign + intPart + fracPart
	}
	out := make([]byte, 0, n+n/3)
	rem := n % 3
	if rem == 0 {
		rem = 3
	}
	out = append(out, intPart[:rem]...)
	for i := rem; i < n; i += 3 {
		out = append(out, ',')
		out = append(out, intPart[i:i+3]...)
	}
	return sign + string(out) + fracPart
}

// FormatPercent formats a fraction (0.125) as a signed percentage (+12.5%).
func FormatPercent(frac float64, decimals int) string {
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%+.*f%%", decimals, frac*100)
}

// FormatCompact abbreviates large amounts: 2.95T, 108.81B, 12.30M.
func FormatCompact(v float64) string {
	abs := math.Abs(v)
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "n/a"
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	}
	return FormatFloat(v, 2)
}
