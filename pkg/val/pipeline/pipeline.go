package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/komsit37/val/pkg/val/filter"
	"github.com/komsit37/val/pkg/val/render"
	"github.com/komsit37/val/pkg/val/source"
	"github.com/komsit37/val/pkg/val/types"
)

// ErrAllFailed is returned when no ticker could be analyzed.
var ErrAllFailed = errors.New("all tickers failed")

// ErrNoTickers is returned when nothing is left to analyze after filtering.
var ErrNoTickers = errors.New("no tickers to analyze")

// Analyzer is satisfied by *analyze.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error)
}

type Runner struct {
	Source   source.Source
	Analyzer Analyzer
	Renderer render.Renderer
	Writer   io.Writer
	Logger   zerolog.Logger
}

type ExecuteOptions struct {
	Columns     []string
	Filter      filter.Filter
	Color       bool
	PrettyJSON  bool
	MaxColWidth int
	Concurrency int
}

// Execute loads ticker lists from spec, keeps those whose name matches the
// filter, analyzes every ticker and renders the results together.
func (r *Runner) Execute(ctx context.Context, spec any, opts ExecuteOptions) error {
	if r.Source == nil {
		return fmt.Errorf("pipeline: no source configured")
	}
	lists, err := r.Source.Load(ctx, spec)
	if err != nil {
		return err
	}

	var filt filter.Filter = filter.Always(true)
	if opts.Filter != nil {
		filt = opts.Filter
	}
	var tickers []string
	for _, l := range lists {
		if !filt.Match(l.Name) {
			r.Logger.Debug().Str("list", l.Name).Msg("list filtered out")
			continue
		}
		tickers = append(tickers, l.Tickers...)
	}
	return r.Run(ctx, tickers, opts)
}

// normalizeTickers upper-cases and trims tickers, dropping blanks and
// repeats while keeping first-seen order.
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Run analyzes the normalized tickers concurrently and renders the successful results in
// input order. Individual failures are logged; the run fails only when
// every ticker fails.
func (r *Runner) Run(ctx context.Context, tickers []string, opts ExecuteOptions) error {
	tickers = normalizeTickers(tickers)
	if len(tickers) == 0 {
		return ErrNoTickers
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	results := make([]*types.AnalysisResult, len(tickers))
	errs := make([]error, len(tickers))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, t := range tickers {
		g.Go(func() error {
			res, err := r.Analyzer.Analyze(ctx, t)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	ok := make([]*types.AnalysisResult, 0, len(results))
	var failed []string
	for i, res := range results {
		if errs[i] != nil {
			r.Logger.Warn().Err(errs[i]).Str("ticker", tickers[i]).Msg("skipping ticker")
			failed = append(failed, tickers[i])
			continue
		}
		ok = append(ok, res)
	}
	if len(ok) == 0 {
		return fmt.Errorf("%w: %s", ErrAllFailed, strings.Join(failed, ", "))
	}
	if len(failed) > 0 {
		r.Logger.Info().Int("ok", len(ok)).Int("failed", len(failed)).Msg("batch finished with failures")
	}

	return r.Renderer.Render(r.Writer, ok, render.RenderOptions{
		Columns:     opts.Columns,
		Color:       opts.Color,
		PrettyJSON:  opts.PrettyJSON,
		MaxColWidth: opts.MaxColWidth,
	})
}
