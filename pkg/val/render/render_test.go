package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/val/pkg/val/types"
)

func f(v float64) *float64 { return &v }

func sampleResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		RunID:  "run-1",
		Ticker: "AAPL",
		Profile: types.CompanyProfile{
			Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology",
			Price: 190, MarketCap: 2.9e12,
		},
		Growth:            0.1,
		Assumptions:       types.Assumptions{WACC: 0.08, TerminalGrowth: 0.025, Years: 3},
		FairValuePerShare: 209,
		Upside:            0.1,
		DCF: types.DCFResult{
			Projected:               []float64{110e9, 121e9, 133.1e9},
			Discounted:              []float64{101.85e9, 103.74e9, 105.66e9},
			TerminalValue:           2480e9,
			DiscountedTerminalValue: 1968.7e9,
			EnterpriseValue:         2279.9e9,
		},
		TargetRatios: types.RatioRecord{PE: f(29.5), EVToEBITDA: f(22.1), EVToSales: f(7.6)},
		Peers: []types.PeerRatio{
			{Symbol: "MSFT", PE: f(35), EVToEBITDA: f(24), EVToSales: f(12), HasData: true},
			{Symbol: "META", Reason: types.ReasonFetchFailed},
			{Symbol: "DELL", Reason: types.ReasonNotAllowed},
		},
		SectorAverages: types.SectorAverages{PE: 35, EVToEBITDA: 24, EVToSales: 12, PECount: 1, EVToEBITDACount: 1, EVToSalesCount: 1},
	}
}

func TestForFormat(t *testing.T) {
	for _, name := range Formats {
		r, err := ForFormat(name)
		require.NoError(t, err, name)
		assert.NotNil(t, r)
	}
	_, err := ForFormat("xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestTableRenderer(t *testing.T) {
	var buf bytes.Buffer
	err := NewTableRenderer().Render(&buf, []*types.AnalysisResult{sampleResult()}, RenderOptions{})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "AAPL  Apple Inc. (Technology)")
	assert.Contains(t, out, "209.00")
	assert.Contains(t, out, "+10.0%")
	assert.Contains(t, out, "133.10B")
	assert.Contains(t, out, "unavailable (fetch failed)")
	assert.Contains(t, out, "unavailable (not in allow-list)")
	assert.Contains(t, out, "SECTOR AVG")
	assert.Contains(t, out, "35.00 (n=1)")
	assert.Contains(t, out, "target")
}

func TestTableRenderer_UnknownColumn(t *testing.T) {
	var buf bytes.Buffer
	err := NewTableRenderer().Render(&buf, []*types.AnalysisResult{sampleResult()}, RenderOptions{Columns: []string{"roe"}})
	assert.ErrorContains(t, err, "unknown column")
}

func TestTableRenderer_NoPeerData(t *testing.T) {
	res := sampleResult()
	res.Peers = nil
	res.SectorAverages = types.SectorAverages{}
	var buf bytes.Buffer
	require.NoError(t, NewTableRenderer().Render(&buf, []*types.AnalysisResult{res}, RenderOptions{}))
	assert.Contains(t, buf.String(), "unavailable")
}

func TestMarkdownRenderer(t *testing.T) {
	var buf bytes.Buffer
	err := NewMarkdownRenderer().Render(&buf, []*types.AnalysisResult{sampleResult()}, RenderOptions{Columns: []string{"sym", "pe"}})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "## AAPL")
	assert.Contains(t, out, "| MSFT |")
	assert.Contains(t, out, "| SYM |")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	err := NewJSONRenderer().Render(&buf, []*types.AnalysisResult{sampleResult(), nil}, RenderOptions{PrettyJSON: true})
	require.NoError(t, err)

	var got struct {
		Count   int `json:"count"`
		Results []struct {
			Ticker            string  `json:"ticker"`
			FairValuePerShare float64 `json:"fair_value_per_share"`
			Peers             []struct {
				Symbol  string `json:"symbol"`
				HasData bool   `json:"has_data"`
			} `json:"peers"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "AAPL", got.Results[0].Ticker)
	assert.Equal(t, 209.0, got.Results[0].FairValuePerShare)
	assert.False(t, got.Results[0].Peers[1].HasData)
}

func TestLineRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLineRenderer().Render(&buf, []*types.AnalysisResult{sampleResult()}, RenderOptions{}))
	assert.Equal(t, "AAPL price=190.00 fair=209.00 upside=+10.0% growth=+10.00% peers=MSFT\n", buf.String())
}

func TestChartRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewChartRenderer().Render(&buf, []*types.AnalysisResult{sampleResult()}, RenderOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	err := NewChartRenderer().Render(&buf, []*types.AnalysisResult{sampleResult(), sampleResult()}, RenderOptions{})
	assert.ErrorIs(t, err, ErrChartSingle)

	short := sampleResult()
	short.DCF.Projected = short.DCF.Projected[:1]
	short.DCF.Discounted = short.DCF.Discounted[:1]
	assert.Error(t, NewChartRenderer().Render(&buf, []*types.AnalysisResult{short}, RenderOptions{}))
}
