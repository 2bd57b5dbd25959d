package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
companies:
  AAPL:
    profile: {name: Apple Inc., sector: Technology, price: 190, market_cap: 2.9e12}
    cash_flows:
      - {date: "2024", free_cash_flow: 110e9}
      - {date: "2023", free_cash_flow: 100e9}
    peers: [MSFT, DELL]
    ratios: {pe: 29.5, ev_ebitda: 22.1, ev_sales: 7.6}
  MSFT:
    profile: {name: Microsoft, price: 400, market_cap: 3e12}
    cash_flows:
      - {date: "2024", free_cash_flow: 70e9}
      - {date: "2023", free_cash_flow: 60e9}
    ratios: {pe: 35, ev_ebitda: 24, ev_sales: 12}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	fixture := filepath.Join(dir, "companies.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(fixtureYAML), 0o644))
	out := filepath.Join(dir, "out.txt")

	base := []string{"--provider", "fixture", "--fixture", fixture, "--log-level", "disabled", "--env-file", filepath.Join(dir, ".env")}
	cmd := newRootCmd()
	cmd.SetArgs(append(append(append([]string{}, args[:1]...), base...), append(args[1:], "-o", out)...))
	err := cmd.Execute()
	data, _ := os.ReadFile(out)
	return string(data), err
}

func TestAnalyzeCommand_Line(t *testing.T) {
	out, err := run(t, "analyze", "AAPL", "msft", "--format", "line")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL price=190.00")
	assert.Contains(t, out, "MSFT price=400.00")
}

func TestAnalyzeCommand_TableWithSets(t *testing.T) {
	out, err := run(t, "analyze", "AAPL", "--sets", "status,relative")
	require.NoError(t, err)
	assert.Contains(t, out, "unavailable (not in allow-list)")
	assert.Contains(t, out, "P/E VS SECTOR")
}

func TestAnalyzeCommand_AssumptionOverride(t *testing.T) {
	_, err := run(t, "analyze", "AAPL", "--wacc", "0.01")
	assert.ErrorContains(t, err, "wacc must exceed terminal growth")
}

func TestAnalyzeCommand_UnknownFormat(t *testing.T) {
	_, err := run(t, "analyze", "AAPL", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestBatchCommand(t *testing.T) {
	lists := filepath.Join(t.TempDir(), "lists.yaml")
	require.NoError(t, os.WriteFile(lists, []byte("tickers:\n  - name: mega\n    tickers: [AAPL, MSFT]\n  - name: other\n    tickers: [ZZZZ]\n"), 0o644))

	out, err := run(t, "batch", lists, "--filter", "mega", "--format", "line")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL ")
	assert.Contains(t, out, "MSFT ")

	_, err = run(t, "batch", lists, "--filter", "other", "--format", "line")
	assert.ErrorContains(t, err, "all tickers failed")
}

func TestPeerColumns(t *testing.T) {
	cols, err := peerColumns("", "")
	require.NoError(t, err)
	assert.Nil(t, cols)

	cols, err = peerColumns("pe_vs_sector", "multiples")
	require.NoError(t, err)
	assert.Equal(t, []string{"sym", "pe", "ev_ebitda", "ev_sales", "pe_vs_sector"}, cols)

	_, err = peerColumns("", "bogus")
	assert.Error(t, err)
}
