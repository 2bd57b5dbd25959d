// Package analyze runs the full valuation workflow for a ticker: fetch,
// estimate growth, discount cash flows and benchmark against peers.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/komsit37/val/pkg/val/dcf"
	"github.com/komsit37/val/pkg/val/growth"
	"github.com/komsit37/val/pkg/val/logging"
	"github.com/komsit37/val/pkg/val/peers"
	"github.com/komsit37/val/pkg/val/provider"
	"github.com/komsit37/val/pkg/val/types"
)

// ErrAnalysisFailed matches every error returned by Analyze.
var ErrAnalysisFailed = errors.New("analysis failed")

// Stages reported by AnalysisError.
const (
	StageProfile  = "profile"
	StageCashFlow = "cash flow"
	StagePeers    = "peers"
	StageRatios   = "ratios"
	StageCompute  = "compute"
)

// AnalysisError is the single error surfaced for a failed run. Its message
// is deliberately generic; the cause is available through errors.Unwrap.
type AnalysisError struct {
	Ticker string
	Stage  string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s failed", e.Ticker)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysisFailed }

// Detail includes the stage and cause, for logs.
func (e *AnalysisError) Detail() string {
	return fmt.Sprintf("analysis of %s failed at %s: %v", e.Ticker, e.Stage, e.Err)
}

// Options configure an Analyzer.
type Options struct {
	Assumptions     types.Assumptions
	HistoryYears    int
	MaxPeers        int
	PeerConcurrency int
	AllowList       peers.AllowList
	CounterMode     peers.CounterMode
	Logger          zerolog.Logger
	Now             func() time.Time
}

// DefaultOptions uses the default assumptions and free-tier allow-list.
func DefaultOptions() Options {
	allow, _ := peers.ParseAllowList(peers.DefaultAllow)
	return Options{
		Assumptions:     dcf.DefaultAssumptions(),
		HistoryYears:    growth.DefaultHistoryYears,
		MaxPeers:        peers.DefaultMax,
		PeerConcurrency: peers.DefaultMax,
		AllowList:       allow,
		CounterMode:     peers.CounterIndependent,
		Logger:          logging.Silent(),
	}
}

// Analyzer composes a provider with the valuation engine.
type Analyzer struct {
	provider provider.Provider
	opts     Options
	log      zerolog.Logger
}

// New returns an Analyzer. Zero-valued options fall back to defaults.
func New(p provider.Provider, opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.Assumptions == (types.Assumptions{}) {
		opts.Assumptions = def.Assumptions
	}
	if opts.HistoryYears <= 0 {
		opts.HistoryYears = def.HistoryYears
	}
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = def.MaxPeers
	}
	if opts.PeerConcurrency <= 0 {
		opts.PeerConcurrency = def.PeerConcurrency
	}
	if opts.AllowList == nil {
		opts.AllowList = def.AllowList
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{
		provider: p,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "analyze").Logger(),
	}
}

// Analyze fetches inputs for ticker and computes its valuation. Any failure
// of the primary ticker's data or of the computation aborts the run; peer
// failures only mark that peer as unavailable.
func (a *Analyzer) Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	fail := func(stage string, err error) (*types.AnalysisResult, error) {
		aerr := &AnalysisError{Ticker: ticker, Stage: stage, Err: err}
		a.log.Error().Err(err).Str("ticker", ticker).Str("stage", stage).Msg("analysis failed")
		return nil, aerr
	}
	if ticker == "" {
		return fail(StageProfile, errors.New("empty ticker"))
	}
	if err := dcf.Validate(a.opts.Assumptions); err != nil {
		return fail(StageCompute, err)
	}

	profile, err := a.provider.Profile(ctx, ticker)
	if err != nil {
		return fail(StageProfile, err)
	}
	records, err := a.provider.CashFlowHistory(ctx, ticker, a.opts.HistoryYears)
	if err != nil {
		return fail(StageCashFlow, err)
	}
	candidates, err := a.provider.Peers(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return fail(StagePeers, ctx.Err())
		}
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("peer list unavailable, continuing without peers")
		candidates = nil
	}
	target, err := a.provider.Ratios(ctx, ticker)
	if err != nil {
		return fail(StageRatios, err)
	}
	peerRows, err := a.fetchPeers(ctx, ticker, candidates)
	if err != nil {
		return fail(StagePeers, err)
	}

	history := growth.CleanHistory(records, a.opts.HistoryYears)
	rep := growth.EstimateWithReport(history)
	if rep.Defaulted {
		a.log.Info().Str("ticker", ticker).Int("points", len(history)).Float64("growth", rep.Rate).
			Msg("not enough cash-flow history, using default growth")
	}
	lastFCF := 0.0
	if len(history) > 0 {
		lastFCF = history[len(history)-1]
	} else {
		a.log.Warn().Str("ticker", ticker).Msg("no valid free cash flow, projecting from zero")
	}

	res, err := dcf.Compute(lastFCF, rep.Rate, a.opts.Assumptions)
	if err != nil {
		return fail(StageCompute, err)
	}
	fair, err := dcf.FairValuePerShare(res.EnterpriseValue, profile)
	if err != nil {
		return fail(StageCompute, err)
	}

	upside := 0.0
	if profile.Price > 0 {
		upside = fair/profile.Price - 1
	}

	out := &types.AnalysisResult{
		RunID:             uuid.NewString(),
		Ticker:            ticker,
		Profile:           profile,
		History:           history,
		Growth:            rep.Rate,
		GrowthDefaulted:   rep.Defaulted,
		Assumptions:       a.opts.Assumptions,
		DCF:               res,
		FairValuePerShare: fair,
		Upside:            upside,
		TargetRatios:      target,
		Peers:             peerRows,
		SectorAverages:    peers.SectorAverages(peerRows, a.opts.CounterMode),
		AnalyzedAt:        a.opts.Now().UTC(),
	}
	a.log.Debug().Str("ticker", ticker).Str("run_id", out.RunID).
		Float64("fair_value", fair).Float64("growth", rep.Rate).Int("peers", len(peerRows)).
		Msg("analysis complete")
	return out, nil
}

// fetchPeers queries allow-listed peers concurrently. A failing peer is
// recorded without data; only cancellation of ctx is an error.
func (a *Analyzer) fetchPeers(ctx context.Context, ticker string, candidates []string) ([]types.PeerRatio, error) {
	query, excluded := peers.Select(candidates, ticker, a.opts.AllowList, a.opts.MaxPeers)
	for _, e := range excluded {
		a.log.Debug().Str("ticker", ticker).Str("peer", e.Symbol).Msg("peer not in allow-list")
	}

	fetched := make([]types.PeerRatio, len(query))
	g := new(errgroup.Group)
	g.SetLimit(a.opts.PeerConcurrency)
	for i, sym := range query {
		g.Go(func() error {
			r, err := a.provider.Ratios(ctx, sym)
			if err != nil {
				a.log.Warn().Err(err).Str("ticker", ticker).Str("peer", sym).Msg("peer ratios unavailable")
				fetched[i] = types.PeerRatio{Symbol: sym, Reason: types.ReasonFetchFailed}
				return nil
			}
			r.Symbol = sym
			fetched[i] = peers.FromRatio(r)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Rows follow the provider's candidate order.
	bySym := make(map[string]types.PeerRatio, len(fetched)+len(excluded))
	for _, r := range append(fetched, excluded...) {
		bySym[r.Symbol] = r
	}
	rows := make([]types.PeerRatio, 0, len(bySym))
	for _, c := range candidates {
		sym := strings.ToUpper(strings.TrimSpace(c))
		if r, ok := bySym[sym]; ok {
			rows = append(rows, r)
			delete(bySym, sym)
		}
	}
	return rows, nil
}
