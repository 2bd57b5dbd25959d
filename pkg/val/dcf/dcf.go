// Package dcf projects free cash flow and discounts it to an enterprise value.
package dcf

import (
	"errors"
	"fmt"
	"math"

	"github.com/komsit37/val/pkg/val/types"
)

const (
	DefaultWACC           = 0.08
	DefaultTerminalGrowth = 0.025
	DefaultYears          = 5
)

var (
	// ErrInvalidDiscountAssumptions is returned when the terminal value would
	// diverge or the horizon is empty.
	ErrInvalidDiscountAssumptions = errors.New("invalid discount assumptions")
	// ErrNoShares is returned when shares outstanding cannot be derived.
	ErrNoShares = errors.New("shares outstanding not available")
)

// Assumptions are the discount rate, perpetual growth and horizon.
type Assumptions = types.Assumptions

// AssumptionError reports which assumption was rejected.
type AssumptionError struct {
	Assumptions Assumptions
	Reason      string
}

func (e *AssumptionError) Error() string {
	return fmt.Sprintf("%s: %s (wacc=%.4f terminal_growth=%.4f years=%d)",
		ErrInvalidDiscountAssumptions, e.Reason, e.Assumptions.WACC, e.Assumptions.TerminalGrowth, e.Assumptions.Years)
}

func (e *AssumptionError) Unwrap() error { return ErrInvalidDiscountAssumptions }

// DefaultAssumptions returns 8% WACC, 2.5% terminal growth over 5 years.
func DefaultAssumptions() Assumptions {
	return Assumptions{WACC: DefaultWACC, TerminalGrowth: DefaultTerminalGrowth, Years: DefaultYears}
}

// Validate checks that a terminal value is defined for a.
func Validate(a Assumptions) error {
	switch {
	case a.Years < 1:
		return &AssumptionError{Assumptions: a, Reason: "years must be at least 1"}
	case a.WACC <= -1:
		return &AssumptionError{Assumptions: a, Reason: "wacc must be greater than -100%"}
	case a.WACC <= a.TerminalGrowth:
		return &AssumptionError{Assumptions: a, Reason: "wacc must exceed terminal growth"}
	}
	return nil
}

// Compute projects lastFCF forward at growth, compounding each year on the
// previous projection, and discounts with end-of-year convention.
func Compute(lastFCF, growth float64, a Assumptions) (types.DCFResult, error) {
	if err := Validate(a); err != nil {
		return types.DCFResult{}, err
	}

	projected := make([]float64, a.Years)
	discounted := make([]float64, a.Years)
	fcf := lastFCF
	for i := 0; i < a.Years; i++ {
		fcf *= 1 + growth
		projected[i] = fcf
		discounted[i] = fcf / math.Pow(1+a.WACC, float64(i+1))
	}

	tv := projected[a.Years-1] * (1 + a.TerminalGrowth) / (a.WACC - a.TerminalGrowth)
	discTV := tv / math.Pow(1+a.WACC, float64(a.Years))

	ev := discTV
	for _, d := range discounted {
		ev += d
	}

	return types.DCFResult{
		Projected:               projected,
		Discounted:              discounted,
		TerminalValue:           tv,
		DiscountedTerminalValue: discTV,
		EnterpriseValue:         ev,
	}, nil
}

// FairValuePerShare divides enterprise value by the profile's shares.
func FairValuePerShare(ev float64, p types.CompanyProfile) (float64, error) {
	shares := p.Shares()
	if shares <= 0 {
		return 0, fmt.Errorf("%s: %w", p.Symbol, ErrNoShares)
	}
	return ev / shares, nil
}
