package types

import "time"

// CompanyProfile is the provider's view of the analyzed company.
type CompanyProfile struct {
	Symbol            string   `json:"symbol" yaml:"symbol"`
	Name              string   `json:"name" yaml:"name"`
	Sector            string   `json:"sector" yaml:"sector"`
	Industry          string   `json:"industry" yaml:"industry"`
	Price             float64  `json:"price" yaml:"price"`
	MarketCap         float64  `json:"market_cap" yaml:"market_cap"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty" yaml:"shares_outstanding"`
}

// Shares returns shares outstanding, derived from market cap / price when
// the provider did not report it. Zero means not derivable.
func (p CompanyProfile) Shares() float64 {
	if p.SharesOutstanding != nil && *p.SharesOutstanding > 0 {
		return *p.SharesOutstanding
	}
	if p.Price > 0 && p.MarketCap > 0 {
		return p.MarketCap / p.Price
	}
	return 0
}

// CashFlowRecord is one annual cash-flow statement row. FreeCashFlow is nil
// when the provider left it empty.
type CashFlowRecord struct {
	Date         string   `json:"date" yaml:"date"`
	FreeCashFlow *float64 `json:"free_cash_flow" yaml:"free_cash_flow"`
}

// RatioRecord holds trailing valuation multiples for one symbol.
type RatioRecord struct {
	Symbol     string   `json:"symbol" yaml:"symbol"`
	PE         *float64 `json:"pe,omitempty" yaml:"pe"`
	EVToEBITDA *float64 `json:"ev_ebitda,omitempty" yaml:"ev_ebitda"`
	EVToSales  *float64 `json:"ev_sales,omitempty" yaml:"ev_sales"`
}

// PeerRatio is a comparable company row. HasData is false for peers that
// were excluded or could not be fetched; Reason says which.
type PeerRatio struct {
	Symbol     string   `json:"symbol"`
	PE         *float64 `json:"pe,omitempty"`
	EVToEBITDA *float64 `json:"ev_ebitda,omitempty"`
	EVToSales  *float64 `json:"ev_sales,omitempty"`
	HasData    bool     `json:"has_data"`
	Reason     string   `json:"reason,omitempty"`
}

// Peer reasons.
const (
	ReasonNotAllowed  = "not in allow-list"
	ReasonFetchFailed = "fetch failed"
)

// SectorAverages are peer-average multiples with their divisors.
type SectorAverages struct {
	PE              float64 `json:"pe"`
	EVToEBITDA      float64 `json:"ev_ebitda"`
	EVToSales       float64 `json:"ev_sales"`
	PECount         int     `json:"pe_count"`
	EVToEBITDACount int     `json:"ev_ebitda_count"`
	EVToSalesCount  int     `json:"ev_sales_count"`
}

// DCFResult is the output of one discounted cash flow run.
type DCFResult struct {
	Projected               []float64 `json:"projected"`
	Discounted              []float64 `json:"discounted"`
	TerminalValue           float64   `json:"terminal_value"`
	DiscountedTerminalValue float64   `json:"discounted_terminal_value"`
	EnterpriseValue         float64   `json:"enterprise_value"`
}

// Assumptions are the discounting inputs used for a run.
type Assumptions struct {
	WACC           float64 `json:"wacc"`
	TerminalGrowth float64 `json:"terminal_growth"`
	Years          int     `json:"years"`
}

// AnalysisResult is the composed output of one Analyze run.
type AnalysisResult struct {
	RunID             string         `json:"run_id"`
	Generation        uint64         `json:"generation,omitempty"`
	Ticker            string         `json:"ticker"`
	Profile           CompanyProfile `json:"profile"`
	History           []float64      `json:"history"`
	Growth            float64        `json:"growth"`
	GrowthDefaulted   bool           `json:"growth_defaulted"`
	Assumptions       Assumptions    `json:"assumptions"`
	DCF               DCFResult      `json:"dcf"`
	FairValuePerShare float64        `json:"fair_value_per_share"`
	Upside            float64        `json:"upside"`
	TargetRatios      RatioRecord    `json:"target_ratios"`
	Peers             []PeerRatio    `json:"peers"`
	SectorAverages    SectorAverages `json:"sector_averages"`
	AnalyzedAt        time.Time      `json:"analyzed_at"`
}

// TickerList is a named group of tickers loaded for batch analysis.
type TickerList struct {
	Name    string
	Tickers []string
}
