package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/komsit37/val/pkg/val/columns"
	"github.com/komsit37/val/pkg/val/types"
)

// TableRenderer prints a summary, the cash flow projection and the peer
// comparison for each result. With Markdown set the same tables are emitted
// as GitHub-flavored markdown.
type TableRenderer struct{ Markdown bool }

func NewTableRenderer() *TableRenderer { return &TableRenderer{} }

func NewMarkdownRenderer() *TableRenderer { return &TableRenderer{Markdown: true} }

func (r *TableRenderer) Render(w io.Writer, results []*types.AnalysisResult, opts RenderOptions) error {
	cols, err := columns.Compute(opts.Columns)
	if err != nil {
		return err
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		r.title(w, res, opts)
		r.flush(w, r.summary(res, opts))
		fmt.Fprintln(w)
		r.flush(w, r.projection(res, opts))
		fmt.Fprintln(w)
		r.flush(w, r.peers(res, cols, opts))
	}
	return nil
}

func (r *TableRenderer) title(w io.Writer, res *types.AnalysisResult, opts RenderOptions) {
	name := res.Ticker
	if res.Profile.Name != "" {
		name += "  " + res.Profile.Name
	}
	if res.Profile.Sector != "" {
		name += " (" + res.Profile.Sector + ")"
	}
	switch {
	case r.Markdown:
		fmt.Fprintln(w, "## "+name)
		fmt.Fprintln(w)
	case opts.Color:
		fmt.Fprintln(w, text.Bold.Sprint(name))
	default:
		fmt.Fprintln(w, name)
	}
}

func (r *TableRenderer) flush(w io.Writer, tw table.Writer) {
	if r.Markdown {
		fmt.Fprintln(w, tw.RenderMarkdown())
		return
	}
	fmt.Fprintln(w, tw.Render())
}

func (r *TableRenderer) newWriter(opts RenderOptions) table.Writer {
	tw := table.NewWriter()
	if opts.Color && !r.Markdown {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Format.Footer = text.FormatDefault
	return tw
}

func (r *TableRenderer) summary(res *types.AnalysisResult, opts RenderOptions) table.Writer {
	tw := r.newWriter(opts)
	tw.AppendHeader(table.Row{"METRIC", "VALUE"})
	growth := columns.FormatPercent(res.Growth, 2)
	if res.GrowthDefaulted {
		growth += " (default)"
	}
	upside := columns.FormatPercent(res.Upside, 1)
	if opts.Color && !r.Markdown {
		if res.Upside < 0 {
			upside = text.Colors{text.FgRed}.Sprint(upside)
		} else if res.Upside > 0 {
			upside = text.Colors{text.FgGreen}.Sprint(upside)
		}
	}
	tw.AppendRows([]table.Row{
		{"Price", columns.FormatFloat(res.Profile.Price, 2)},
		{"Fair value / share", columns.FormatFloat(res.FairValuePerShare, 2)},
		{"Upside", upside},
		{"FCF growth", growth},
		{"WACC", columns.FormatPercent(res.Assumptions.WACC, 2)},
		{"Terminal growth", columns.FormatPercent(res.Assumptions.TerminalGrowth, 2)},
		{"Enterprise value", columns.FormatCompact(res.DCF.EnterpriseValue)},
		{"Terminal value (PV)", columns.FormatCompact(res.DCF.DiscountedTerminalValue)},
		{"Shares", columns.FormatCompact(res.Profile.Shares())},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	return tw
}

func (r *TableRenderer) projection(res *types.AnalysisResult, opts RenderOptions) table.Writer {
	tw := r.newWriter(opts)
	tw.AppendHeader(table.Row{"YEAR", "PROJECTED FCF", "DISCOUNTED"})
	for i, p := range res.DCF.Projected {
		var disc float64
		if i < len(res.DCF.Discounted) {
			disc = res.DCF.Discounted[i]
		}
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), columns.FormatCompact(p), columns.FormatCompact(disc)})
	}
	tw.AppendFooter(table.Row{"TV", columns.FormatCompact(res.DCF.TerminalValue), columns.FormatCompact(res.DCF.DiscountedTerminalValue)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw
}

func (r *TableRenderer) peers(res *types.AnalysisResult, cols []string, opts RenderOptions) table.Writer {
	tw := r.newWriter(opts)
	hdr := make(table.Row, len(cols))
	for i, c := range cols {
		hdr[i] = columns.Header(c)
	}
	tw.AppendHeader(hdr)

	for _, p := range res.Peers {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = columns.RenderValue(c, p, res.SectorAverages)
		}
		tw.AppendRow(row)
	}

	target := types.PeerRatio{
		Symbol:     res.Ticker,
		PE:         res.TargetRatios.PE,
		EVToEBITDA: res.TargetRatios.EVToEBITDA,
		EVToSales:  res.TargetRatios.EVToSales,
		HasData:    true,
	}
	avg := res.SectorAverages
	foot := make(table.Row, len(cols))
	self := make(table.Row, len(cols))
	for i, c := range cols {
		switch c {
		case "sym":
			foot[i] = "SECTOR AVG"
		case "pe":
			foot[i] = sectorCell(avg.PE, avg.PECount)
		case "ev_ebitda":
			foot[i] = sectorCell(avg.EVToEBITDA, avg.EVToEBITDACount)
		case "ev_sales":
			foot[i] = sectorCell(avg.EVToSales, avg.EVToSalesCount)
		default:
			foot[i] = ""
		}
		self[i] = columns.RenderValue(c, target, avg)
		if c == "status" {
			self[i] = "target"
		}
	}
	tw.AppendRow(self)
	tw.AppendFooter(foot)

	maxWidth := opts.MaxColWidth
	if maxWidth <= 0 {
		maxWidth = 40
	}
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		cfg := table.ColumnConfig{Number: i + 1, WidthMax: maxWidth}
		if d, ok := columns.Registry[c]; ok && d.AlignRight {
			cfg.Align = text.AlignRight
			cfg.AlignHeader = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		}
		cfgs = append(cfgs, cfg)
	}
	tw.SetColumnConfigs(cfgs)
	return tw
}

func sectorCell(v float64, n int) string {
	if n == 0 {
		return columns.Unavailable
	}
	return columns.FormatFloat(v, 2) + " (n=" + strconv.Itoa(n) + ")"
}

// symbols joins peer symbols that contributed data.
func symbols(peers []types.PeerRatio) string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p.HasData {
			out = append(out, p.Symbol)
		}
	}
	return strings.Join(out, ",")
}
