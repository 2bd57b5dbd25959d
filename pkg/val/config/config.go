// Package config loads val settings from a YAML file, the environment
// (VAL_ prefix) and an optional .env file, and builds the runtime pieces
// those settings describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/komsit37/val/pkg/val/analyze"
	"github.com/komsit37/val/pkg/val/dcf"
	"github.com/komsit37/val/pkg/val/growth"
	"github.com/komsit37/val/pkg/val/logging"
	"github.com/komsit37/val/pkg/val/peers"
	"github.com/komsit37/val/pkg/val/provider"
	"github.com/komsit37/val/pkg/val/types"
)

// Provider kinds.
const (
	ProviderFMP     = "fmp"
	ProviderFixture = "fixture"
)

type Config struct {
	Log      LogConfig
	Provider ProviderConfig
	Cache    CacheConfig
	DCF      DCFConfig
	Peers    PeersConfig
	Server   ServerConfig
}

type LogConfig struct {
	Level string
}

type ProviderConfig struct {
	Kind        string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	RateLimit   int
	Fixture     string
	YahooPrices bool
}

type CacheConfig struct {
	TTL  time.Duration
	Size int
}

type DCFConfig struct {
	WACC           float64
	TerminalGrowth float64
	Years          int
	HistoryYears   int
}

type PeersConfig struct {
	Max         int
	Allow       string
	Counter     string
	Concurrency int
}

type ServerConfig struct {
	Port int
}

// NewViper returns a viper instance with defaults and VAL_* environment
// bindings. provider.api_key also reads FMP_API_KEY.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("provider.kind", ProviderFMP)
	v.SetDefault("provider.base_url", provider.DefaultBaseURL)
	v.SetDefault("provider.timeout", provider.DefaultTimeout)
	v.SetDefault("provider.rate_limit", provider.DefaultRateLimit)
	v.SetDefault("provider.yahoo_prices", false)
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.size", 256)
	v.SetDefault("dcf.wacc", dcf.DefaultWACC)
	v.SetDefault("dcf.terminal_growth", dcf.DefaultTerminalGrowth)
	v.SetDefault("dcf.years", dcf.DefaultYears)
	v.SetDefault("dcf.history_years", growth.DefaultHistoryYears)
	v.SetDefault("peers.max", peers.DefaultMax)
	v.SetDefault("peers.allow", peers.DefaultAllow)
	v.SetDefault("peers.counter", peers.CounterIndependent.String())
	v.SetDefault("peers.concurrency", peers.DefaultMax)
	v.SetDefault("server.port", 8080)

	v.SetEnvPrefix("VAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("provider.api_key", "VAL_PROVIDER_API_KEY", "FMP_API_KEY")
	return v
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the optional config file at path into v and decodes the
// result. Pass NewViper() unless flags have been bound to another instance.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return &Config{
		Log: LogConfig{Level: v.GetString("log.level")},
		Provider: ProviderConfig{
			Kind:        strings.ToLower(strings.TrimSpace(v.GetString("provider.kind"))),
			BaseURL:     v.GetString("provider.base_url"),
			APIKey:      v.GetString("provider.api_key"),
			Timeout:     v.GetDuration("provider.timeout"),
			RateLimit:   v.GetInt("provider.rate_limit"),
			Fixture:     v.GetString("provider.fixture"),
			YahooPrices: v.GetBool("provider.yahoo_prices"),
		},
		Cache: CacheConfig{
			TTL:  v.GetDuration("cache.ttl"),
			Size: v.GetInt("cache.size"),
		},
		DCF: DCFConfig{
			WACC:           v.GetFloat64("dcf.wacc"),
			TerminalGrowth: v.GetFloat64("dcf.terminal_growth"),
			Years:          v.GetInt("dcf.years"),
			HistoryYears:   v.GetInt("dcf.history_years"),
		},
		Peers: PeersConfig{
			Max:         v.GetInt("peers.max"),
			Allow:       v.GetString("peers.allow"),
			Counter:     v.GetString("peers.counter"),
			Concurrency: v.GetInt("peers.concurrency"),
		},
		Server: ServerConfig{Port: v.GetInt("server.port")},
	}, nil
}

// Assumptions returns the discounting inputs.
func (c *Config) Assumptions() types.Assumptions {
	return types.Assumptions{WACC: c.DCF.WACC, TerminalGrowth: c.DCF.TerminalGrowth, Years: c.DCF.Years}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderFMP:
		if c.Provider.APIKey == "" {
			return errors.New("provider.api_key is required for the fmp provider (or set FMP_API_KEY)")
		}
	case ProviderFixture:
		if c.Provider.Fixture == "" {
			return errors.New("provider.fixture is required for the fixture provider")
		}
	default:
		return fmt.Errorf("provider.kind: unknown provider %q (want %s or %s)", c.Provider.Kind, ProviderFMP, ProviderFixture)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout)
	}
	if c.Cache.TTL < 0 || c.Cache.Size < 0 {
		return errors.New("cache.ttl and cache.size must not be negative")
	}
	if err := dcf.Validate(c.Assumptions()); err != nil {
		return fmt.Errorf("dcf: %w", err)
	}
	if c.DCF.HistoryYears < 2 {
		return fmt.Errorf("dcf.history_years must be at least 2, got %d", c.DCF.HistoryYears)
	}
	if c.Peers.Max < 0 || c.Peers.Concurrency < 0 {
		return errors.New("peers.max and peers.concurrency must not be negative")
	}
	if _, err := peers.ParseCounterMode(c.Peers.Counter); err != nil {
		return fmt.Errorf("peers.counter: %w", err)
	}
	if _, err := peers.ParseAllowList(c.Peers.Allow); err != nil {
		return fmt.Errorf("peers.allow: %w", err)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// BuildProvider assembles the data provider chain:
// base (fmp or fixture), optional Yahoo price overlay, optional cache.
func (c *Config) BuildProvider(log zerolog.Logger) (provider.Provider, error) {
	var p provider.Provider
	switch c.Provider.Kind {
	case ProviderFixture:
		fx, err := provider.LoadFixture(c.Provider.Fixture)
		if err != nil {
			return nil, err
		}
		p = fx
	case ProviderFMP:
		p = provider.NewFMP(c.Provider.APIKey,
			provider.WithBaseURL(c.Provider.BaseURL),
			provider.WithTimeout(c.Provider.Timeout),
			provider.WithRateLimit(c.Provider.RateLimit),
			provider.WithLogger(logging.Component(log, "fmp")),
		)
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider.Kind)
	}
	if c.Provider.YahooPrices {
		p = provider.NewYahooPrices(p, c.Provider.Timeout, logging.Component(log, "yahoo"))
	}
	if c.Cache.TTL > 0 {
		p = provider.NewCache(p, c.Cache.TTL, c.Cache.Size)
	}
	return p, nil
}

// AnalyzeOptions converts the dcf and peers sections into analyzer options.
func (c *Config) AnalyzeOptions(log zerolog.Logger) (analyze.Options, error) {
	mode, err := peers.ParseCounterMode(c.Peers.Counter)
	if err != nil {
		return analyze.Options{}, err
	}
	allow, err := peers.ParseAllowList(c.Peers.Allow)
	if err != nil {
		return analyze.Options{}, err
	}
	return analyze.Options{
		Assumptions:     c.Assumptions(),
		HistoryYears:    c.DCF.HistoryYears,
		MaxPeers:        c.Peers.Max,
		PeerConcurrency: c.Peers.Concurrency,
		AllowList:       allow,
		CounterMode:     mode,
		Logger:          log,
	}, nil
}

// NewAnalyzer validates c and returns a ready Analyzer.
func (c *Config) NewAnalyzer(log zerolog.Logger) (*analyze.Analyzer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, err := c.BuildProvider(log)
	if err != nil {
		return nil, err
	}
	opts, err := c.AnalyzeOptions(log)
	if err != nil {
		return nil, err
	}
	return analyze.New(p, opts), nil
}
