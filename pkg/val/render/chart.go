package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/komsit37/val/pkg/val/types"
)

// ErrChartSingle is returned when more than one result is charted.
var ErrChartSingle = errors.New("chart output supports exactly one ticker")

// ChartRenderer writes a PNG of projected and discounted free cash flow.
type ChartRenderer struct {
	Width  int
	Height int
}

func NewChartRenderer() *ChartRenderer { return &ChartRenderer{Width: 900, Height: 400} }

func (r *ChartRenderer) Render(w io.Writer, results []*types.AnalysisResult, _ RenderOptions) error {
	if len(results) != 1 || results[0] == nil {
		return ErrChartSingle
	}
	res := results[0]
	n := len(res.DCF.Projected)
	if n < 2 {
		return fmt.Errorf("need at least 2 projected years, got %d", n)
	}

	years := make([]float64, n)
	for i := range years {
		years[i] = float64(i + 1)
	}

	projected := chart.ContinuousSeries{
		Name: "Projected FCF",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: years,
		YValues: res.DCF.Projected,
	}
	discounted := chart.ContinuousSeries{
		Name: "Discounted FCF",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"),
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: years,
		YValues: res.DCF.Discounted,
	}

	graph := chart.Chart{
		Title:  res.Ticker + " free cash flow projection",
		Width:  r.Width,
		Height: r.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name: "Year",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("Y%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1fB", f/1e9)
				}
				return ""
			},
		},
		Series: []chart.Series{projected, discounted},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("chart render failed: %w", err)
	}
	return nil
}
