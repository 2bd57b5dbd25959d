package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/komsit37/val/pkg/val/types"
)

// FixtureCompany is one symbol's canned provider data.
type FixtureCompany struct {
	Profile   types.CompanyProfile   `yaml:"profile"`
	CashFlows []types.CashFlowRecord `yaml:"cash_flows"` // newest first
	Peers     []string               `yaml:"peers"`
	Ratios    *types.RatioRecord     `yaml:"ratios"`
	// Fail lists calls that return an error: profile, cash_flows, peers, ratios.
	Fail []string `yaml:"fail"`
}

// Fixture serves provider data from a YAML document, for offline runs and
// tests.
type Fixture struct {
	companies map[string]FixtureCompany
}

type fixtureFile struct {
	Companies map[string]FixtureCompany `yaml:"companies"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	fx, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// ParseFixture parses fixture YAML:
//
//	companies:
//	  AAPL:
//	    profile: {name: Apple Inc., price: 190, market_cap: 2.9e12}
//	    cash_flows: [{date: "2024", free_cash_flow: 1.08e11}, ...]
//	    peers: [MSFT, GOOGL]
//	    ratios: {pe: 29.5, ev_ebitda: 22.1, ev_sales: 7.6}
func ParseFixture(data []byte) (*Fixture, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Companies) == 0 {
		return nil, fmt.Errorf("invalid fixture: missing 'companies'")
	}
	return NewFixture(f.Companies), nil
}

// NewFixture builds a fixture from an in-memory map keyed by symbol.
func NewFixture(companies map[string]FixtureCompany) *Fixture {
	fx := &Fixture{companies: make(map[string]FixtureCompany, len(companies))}
	for sym, c := range companies {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if c.Profile.Symbol == "" {
			c.Profile.Symbol = sym
		}
		if c.Ratios != nil && c.Ratios.Symbol == "" {
			c.Ratios.Symbol = sym
		}
		fx.companies[sym] = c
	}
	return fx
}

func (f *Fixture) company(symbol, call string) (FixtureCompany, error) {
	c, ok := f.companies[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return FixtureCompany{}, fmt.Errorf("%s %s: %w", call, symbol, ErrNotFound)
	}
	for _, fail := range c.Fail {
		if fail == call {
			return FixtureCompany{}, fmt.Errorf("%s %s: injected failure", call, symbol)
		}
	}
	return c, nil
}

func (f *Fixture) Profile(ctx context.Context, symbol string) (types.CompanyProfile, error) {
	if err := ctx.Err(); err != nil {
		return types.CompanyProfile{}, err
	}
	c, err := f.company(symbol, "profile")
	if err != nil {
		return types.CompanyProfile{}, err
	}
	return c.Profile, nil
}

func (f *Fixture) CashFlowHistory(ctx context.Context, symbol string, years int) ([]types.CashFlowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := f.company(symbol, "cash_flows")
	if err != nil {
		return nil, err
	}
	recs := c.CashFlows
	if years > 0 && len(recs) > years {
		recs = recs[:years]
	}
	return append([]types.CashFlowRecord(nil), recs...), nil
}

func (f *Fixture) Peers(ctx context.Context, symbol string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := f.company(symbol, "peers")
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.Peers...), nil
}

func (f *Fixture) Ratios(ctx context.Context, symbol string) (types.RatioRecord, error) {
	if err := ctx.Err(); err != nil {
		return types.RatioRecord{}, err
	}
	c, err := f.company(symbol, "ratios")
	if err != nil {
		return types.RatioRecord{}, err
	}
	if c.Ratios == nil {
		return types.RatioRecord{}, fmt.Errorf("ratios %s: %w", symbol, ErrNotFound)
	}
	return *c.Ratios, nil
}
