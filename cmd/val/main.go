package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/komsit37/val/pkg/val/columns"
	"github.com/komsit37/val/pkg/val/config"
	"github.com/komsit37/val/pkg/val/filter"
	"github.com/komsit37/val/pkg/val/logging"
	"github.com/komsit37/val/pkg/val/pipeline"
	"github.com/komsit37/val/pkg/val/render"
	"github.com/komsit37/val/pkg/val/server"
	"github.com/komsit37/val/pkg/val/source"
)

// app carries state shared by subcommands after flags are parsed.
type app struct {
	v       *viper.Viper
	cfgPath string
	envPath string
	cfg     *config.Config
	log     zerolog.Logger
}

// outputFlags are shared by analyze and batch.
type outputFlags struct {
	format      string
	cols        string
	sets        string
	noColor     bool
	pretty      bool
	output      string
	concurrency int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	root := &cobra.Command{
		Use:          "val",
		Short:        "Discounted cash flow valuation with sector comparables",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (YAML)")
	pf.StringVar(&a.envPath, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error, disabled")
	pf.String("provider", config.ProviderFMP, "data provider: fmp or fixture")
	pf.String("fixture", "", "fixture YAML for the fixture provider")
	pf.Bool("yahoo-prices", false, "overlay live prices from Yahoo Finance")
	pf.Float64("wacc", 0, "discount rate (overrides dcf.wacc)")
	pf.Float64("terminal-growth", 0, "perpetual growth (overrides dcf.terminal_growth)")
	pf.Int("years", 0, "projection horizon in years (overrides dcf.years)")
	pf.String("counter", "", "sector average divisor: independent or shared")
	pf.String("allow", "", "peer allow-list: comma list, glob or /regex/")
	bind(a.v, pf.Lookup("log-level"), "log.level")
	bind(a.v, pf.Lookup("provider"), "provider.kind")
	bind(a.v, pf.Lookup("fixture"), "provider.fixture")
	bind(a.v, pf.Lookup("yahoo-prices"), "provider.yahoo_prices")
	bind(a.v, pf.Lookup("wacc"), "dcf.wacc")
	bind(a.v, pf.Lookup("terminal-growth"), "dcf.terminal_growth")
	bind(a.v, pf.Lookup("years"), "dcf.years")
	bind(a.v, pf.Lookup("counter"), "peers.counter")
	bind(a.v, pf.Lookup("allow"), "peers.allow")

	root.AddCommand(newAnalyzeCmd(a), newBatchCmd(a), newServeCmd(a))
	return root
}

func (a *app) init() error {
	if err := config.LoadDotEnv(a.envPath); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Log.Level)
	return nil
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "table", "output format: "+strings.Join(render.Formats, ", "))
	f.StringVar(&o.cols, "columns", "", "peer table columns, comma-separated (e.g. sym,pe,pe_vs_sector)")
	f.StringVar(&o.sets, "sets", "", "peer table column sets, comma-separated (multiples, relative, status)")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&o.pretty, "pretty", true, "indent JSON output")
	f.StringVarP(&o.output, "output", "o", "", "write output to file instead of stdout")
	f.IntVar(&o.concurrency, "concurrency", 4, "tickers analyzed in parallel")
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var o outputFlags
	cmd := &cobra.Command{
		Use:   "analyze <ticker> [ticker...]",
		Short: "Value one or more tickers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, opts, closeOut, err := a.runner(&o)
			if err != nil {
				return err
			}
			defer closeOut()
			return r.Run(cmd.Context(), args, opts)
		},
	}
	addOutputFlags(cmd, &o)
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		o    outputFlags
		expr string
	)
	cmd := &cobra.Command{
		Use:   "batch <file.yaml|dir>",
		Short: "Value every ticker in YAML ticker lists",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("requires exactly 1 YAML file or directory argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			flt, err := filter.Parse(expr)
			if err != nil {
				return err
			}
			r, opts, closeOut, err := a.runner(&o)
			if err != nil {
				return err
			}
			defer closeOut()
			r.Source = source.YAMLSource{}
			opts.Filter = flt
			return r.Execute(cmd.Context(), args[0], opts)
		},
	}
	addOutputFlags(cmd, &o)
	cmd.Flags().StringVar(&expr, "filter", "", "keep lists by name: comma list, glob, /regex/ or substring")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve valuations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := a.cfg.NewAnalyzer(a.log)
			if err != nil {
				return err
			}
			srv := server.New(server.Config{Log: a.log, Analyzer: analyzer, Port: a.cfg.Server.Port})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().Int("port", 8080, "listen port")
	bind(a.v, cmd.Flags().Lookup("port"), "server.port")
	return cmd
}

// runner builds a pipeline runner from config and output flags. The
// returned func closes the output file, if any.
func (a *app) runner(o *outputFlags) (*pipeline.Runner, pipeline.ExecuteOptions, func(), error) {
	noop := func() {}
	analyzer, err := a.cfg.NewAnalyzer(a.log)
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, noop, err
	}
	rend, err := render.ForFormat(o.format)
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, noop, err
	}
	cols, err := peerColumns(o.cols, o.sets)
	if err != nil {
		return nil, pipeline.ExecuteOptions{}, noop, err
	}

	var w io.Writer = os.Stdout
	closeOut := noop
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return nil, pipeline.ExecuteOptions{}, noop, fmt.Errorf("create %s: %w", o.output, err)
		}
		w = f
		closeOut = func() { _ = f.Close() }
	}

	r := &pipeline.Runner{
		Analyzer: analyzer,
		Renderer: rend,
		Writer:   w,
		Logger:   logging.Component(a.log, "pipeline"),
	}
	opts := pipeline.ExecuteOptions{
		Columns:     cols,
		PrettyJSON:  o.pretty,
		Concurrency: o.concurrency,
	}
	if o.output == "" {
		opts.Color = !o.noColor
		opts.MaxColWidth = maxColWidth(len(cols))
	}
	return r, opts, closeOut, nil
}

// peerColumns merges explicit columns with expanded sets.
func peerColumns(cols, sets string) ([]string, error) {
	var out []string
	if strings.TrimSpace(sets) != "" {
		expanded, err := columns.ExpandSets(strings.Split(sets, ","))
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	if strings.TrimSpace(cols) != "" {
		out = append(out, strings.Split(cols, ",")...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return columns.Compute(out)
}

// maxColWidth splits the terminal width across n columns, keeping the
// renderer default when the width is unknown.
func maxColWidth(n int) int {
	if n == 0 {
		n = len(columns.Default)
	}
	width := detectTerminalWidth()
	if width <= 0 {
		return 0
	}
	w := width / n
	if w < 12 {
		w = 12
	}
	return w
}

// bind lets a flag override a config key when it is set explicitly.
func bind(v *viper.Viper, f *pflag.Flag, key string) {
	_ = v.BindPFlag(key, f)
}
