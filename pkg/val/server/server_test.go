package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/val/pkg/val/analyze"
	"github.com/komsit37/val/pkg/val/provider"
	"github.com/komsit37/val/pkg/val/types"
)

func f(v float64) *float64 { return &v }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	fx := provider.NewFixture(map[string]provider.FixtureCompany{
		"AAPL": {
			Profile: types.CompanyProfile{Name: "Apple Inc.", Price: 190, MarketCap: 2.9e12},
			CashFlows: []types.CashFlowRecord{
				{Date: "2024", FreeCashFlow: f(110e9)},
				{Date: "2023", FreeCashFlow: f(100e9)},
			},
			Peers:  []string{"MSFT"},
			Ratios: &types.RatioRecord{PE: f(29.5)},
		},
		"MSFT": {Ratios: &types.RatioRecord{PE: f(35)}},
		"BAD":  {Fail: []string{"profile"}},
	})
	s := New(Config{Log: zerolog.Nop(), Analyzer: analyze.New(fx, analyze.DefaultOptions())})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/analyze/aapl")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var res types.AnalysisResult
	decode(t, resp, &res)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.InDelta(t, 0.1, res.Growth, 1e-12)
	assert.Greater(t, res.FairValuePerShare, 0.0)
	require.Len(t, res.Peers, 1)
	assert.Equal(t, 1, res.SectorAverages.PECount)
}

func TestAnalyze_FailureIsGeneric(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/analyze/BAD")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, "analysis of BAD failed", body.Error)
}

func TestChart(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/analyze/AAPL/chart.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/session/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/session/analyze/AAPL", "application/json", nil)
	require.NoError(t, err)
	var res types.AnalysisResult
	decode(t, resp, &res)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1), res.Generation)

	resp, err = http.Post(ts.URL+"/api/session/analyze/BAD", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/session/latest")
	require.NoError(t, err)
	decode(t, resp, &res)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, uint64(1), res.Generation)
}

type blockingRunner struct{ started chan string }

func (b blockingRunner) Analyze(ctx context.Context, ticker string) (*types.AnalysisResult, error) {
	b.started <- ticker
	if ticker == "SLOW" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &types.AnalysisResult{Ticker: ticker}, nil
}

func TestSession_SupersededIsConflict(t *testing.T) {
	runner := blockingRunner{started: make(chan string, 2)}
	ts := httptest.NewServer(New(Config{Log: zerolog.Nop(), Analyzer: runner}).Handler())
	defer ts.Close()

	codes := make(chan int, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/session/analyze/SLOW", "application/json", nil)
		if err != nil {
			codes <- 0
			return
		}
		resp.Body.Close()
		codes <- resp.StatusCode
	}()
	require.Equal(t, "SLOW", <-runner.started)

	resp, err := http.Post(ts.URL+"/api/session/analyze/MSFT", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusConflict, <-codes)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/analyze/AAPL", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(analyze.ErrSuperseded))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&analyze.AnalysisError{Ticker: "X", Err: context.DeadlineExceeded}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&analyze.AnalysisError{Ticker: "X", Err: provider.ErrNotFound}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
