package provider

import (
	"context"
	"fmt"
	"time"

	yfgo "github.com/komsit37/yf-go"
	"github.com/rs/zerolog"

	"github.com/komsit37/val/pkg/val/types"
)

// quote is the subset of a Yahoo price module the overlay uses.
type quote struct {
	Price float64
	Name  string
}

type quoteFunc func(ctx context.Context, sym string) (quote, error)

// YahooPrices decorates a Provider, replacing profile prices with Yahoo
// Finance's regular market price. Yahoo failures leave the profile as the
// wrapped provider returned it.
type YahooPrices struct {
	next    Provider
	quote   quoteFunc
	timeout time.Duration
	log     zerolog.Logger
}

func NewYahooPrices(next Provider, timeout time.Duration, log zerolog.Logger) *YahooPrices {
	client := yfgo.NewClient()
	return &YahooPrices{next: next, quote: yahooQuote(client), timeout: timeout, log: log}
}

func yahooQuote(client *yfgo.Client) quoteFunc {
	return func(ctx context.Context, sym string) (quote, error) {
		res, err := client.QuoteSummaryTyped(ctx, sym, []yfgo.QuoteSummaryModule{yfgo.ModulePrice})
		if err != nil {
			return quote{}, err
		}
		if res.Price == nil || res.Price.RegularMarketPrice.Raw == nil {
			return quote{}, fmt.Errorf("no price for %s", sym)
		}
		q := quote{Price: *res.Price.RegularMarketPrice.Raw}
		if res.Price.ShortName != "" {
			q.Name = res.Price.ShortName
		} else if res.Price.LongName != "" {
			q.Name = res.Price.LongName
		}
		return q, nil
	}
}

func (y *YahooPrices) Profile(ctx context.Context, symbol string) (types.CompanyProfile, error) {
	p, err := y.next.Profile(ctx, symbol)
	if err != nil {
		return p, err
	}
	cctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()
	q, err := y.quote(cctx, symbol)
	if err != nil || q.Price <= 0 {
		y.log.Debug().Err(err).Str("symbol", symbol).Msg("yahoo price unavailable, keeping provider price")
		return p, nil
	}
	return overlayPrice(p, q), nil
}

// overlayPrice swaps in the live price. Shares derived from the old market
// cap are pinned first so the new price does not change the share count.
func overlayPrice(p types.CompanyProfile, q quote) types.CompanyProfile {
	if p.SharesOutstanding == nil {
		if shares := p.Shares(); shares > 0 {
			p.SharesOutstanding = &shares
		}
	}
	p.Price = q.Price
	if p.SharesOutstanding != nil {
		p.MarketCap = *p.SharesOutstanding * q.Price
	}
	if p.Name == "" {
		p.Name = q.Name
	}
	return p
}

func (y *YahooPrices) CashFlowHistory(ctx context.Context, symbol string, years int) ([]types.CashFlowRecord, error) {
	return y.next.CashFlowHistory(ctx, symbol, years)
}

func (y *YahooPrices) Peers(ctx context.Context, symbol string) ([]string, error) {
	return y.next.Peers(ctx, symbol)
}

func (y *YahooPrices) Ratios(ctx context.Context, symbol string) (types.RatioRecord, error) {
	return y.next.Ratios(ctx, symbol)
}
