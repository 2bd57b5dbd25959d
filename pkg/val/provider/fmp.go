package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/komsit37/val/pkg/val/logging"
	"github.com/komsit37/val/pkg/val/types"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com/api"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// optFloat is a JSON number that may also arrive as a string, empty or null.
type optFloat struct {
	Value float64
	Valid bool
}

func (o *optFloat) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*o = optFloat{}
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*o = optFloat{Value: num, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		num, err := strconv.ParseFloat(s, 64)
		if s == "" || s == "N/A" || err != nil {
			*o = optFloat{}
			return nil
		}
		*o = optFloat{Value: num, Valid: true}
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

func (o optFloat) ptr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

type fmpProfile struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	Sector      string   `json:"sector"`
	Industry    string   `json:"industry"`
	Price       optFloat `json:"price"`
	MktCap      optFloat `json:"mktCap"`
}

type fmpCashFlow struct {
	Date         string   `json:"date"`
	FreeCashFlow optFloat `json:"freeCashFlow"`
}

type fmpPeers struct {
	Symbol    string   `json:"symbol"`
	PeersList []string `json:"peersList"`
}

type fmpKeyMetrics struct {
	PERatio    optFloat `json:"peRatioTTM"`
	EVToEBITDA optFloat `json:"enterpriseValueOverEBITDATTM"`
	EVToSales  optFloat `json:"evToSalesTTM"`
}

// FMP is a Financial Modeling Prep client.
type FMP struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// FMPOption configures the client.
type FMPOption func(*FMP)

func WithBaseURL(baseURL string) FMPOption {
	return func(c *FMP) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithLogger(log zerolog.Logger) FMPOption {
	return func(c *FMP) { c.log = log }
}

// WithRateLimit sets requests per second; values < 1 disable limiting.
func WithRateLimit(requestsPerSecond int) FMPOption {
	return func(c *FMP) {
		if requestsPerSecond < 1 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func WithTimeout(timeout time.Duration) FMPOption {
	return func(c *FMP) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(hc *http.Client) FMPOption {
	return func(c *FMP) { c.httpClient = hc }
}

// NewFMP creates a client authenticated with apiKey.
func NewFMP(apiKey string, opts ...FMPOption) *FMP {
	c := &FMP{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        logging.Silent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-200 response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("FMP API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET and decodes the JSON body into result.
func (c *FMP) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("FMP request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *FMP) Profile(ctx context.Context, symbol string) (types.CompanyProfile, error) {
	var rows []fmpProfile
	if err := c.get(ctx, "/v3/profile/"+url.PathEscape(symbol), nil, &rows); err != nil {
		return types.CompanyProfile{}, err
	}
	if len(rows) == 0 {
		return types.CompanyProfile{}, fmt.Errorf("profile %s: %w", symbol, ErrNotFound)
	}
	r := rows[0]
	return types.CompanyProfile{
		Symbol:    firstNonEmpty(r.Symbol, symbol),
		Name:      r.CompanyName,
		Sector:    r.Sector,
		Industry:  r.Industry,
		Price:     r.Price.Value,
		MarketCap: r.MktCap.Value,
	}, nil
}

func (c *FMP) CashFlowHistory(ctx context.Context, symbol string, years int) ([]types.CashFlowRecord, error) {
	params := url.Values{}
	if years > 0 {
		params.Set("limit", strconv.Itoa(years))
	}
	var rows []fmpCashFlow
	if err := c.get(ctx, "/v3/cash-flow-statement/"+url.PathEscape(symbol), params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("cash flow %s: %w", symbol, ErrNotFound)
	}
	out := make([]types.CashFlowRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.CashFlowRecord{Date: r.Date, FreeCashFlow: r.FreeCashFlow.ptr()})
	}
	return out, nil
}

func (c *FMP) Peers(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var rows []fmpPeers
	if err := c.get(ctx, "/v4/stock_peers", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].PeersList, nil
}

func (c *FMP) Ratios(ctx context.Context, symbol string) (types.RatioRecord, error) {
	var rows []fmpKeyMetrics
	if err := c.get(ctx, "/v3/key-metrics-ttm/"+url.PathEscape(symbol), nil, &rows); err != nil {
		return types.RatioRecord{}, err
	}
	if len(rows) == 0 {
		return types.RatioRecord{}, fmt.Errorf("ratios %s: %w", symbol, ErrNotFound)
	}
	r := rows[0]
	return types.RatioRecord{
		Symbol:     symbol,
		PE:         r.PERatio.ptr(),
		EVToEBITDA: r.EVToEBITDA.ptr(),
		EVToSales:  r.EVToSales.ptr(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
