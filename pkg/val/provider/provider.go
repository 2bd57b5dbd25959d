// Package provider fetches company financials from external data sources.
package provider

import (
	"context"
	"errors"

	"github.com/komsit37/val/pkg/val/types"
)

// ErrNotFound is returned when a provider has no data for a symbol.
var ErrNotFound = errors.New("no data for symbol")

// Provider supplies the inputs of a valuation.
type Provider interface {
	Profile(ctx context.Context, symbol string) (types.CompanyProfile, error)
	// CashFlowHistory returns up to years annual statements, newest first.
	CashFlowHistory(ctx context.Context, symbol string, years int) ([]types.CashFlowRecord, error)
	Peers(ctx context.Context, symbol string) ([]string, error)
	Ratios(ctx context.Context, symbol string) (types.RatioRecord, error)
}
