// Package config defines the top-level configuration for polytrade and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYTRADE_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Trading    TradingConfig    `toml:"trading"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// FunderAddress is the proxy wallet holding funds; empty means the
	// signing address itself.
	FunderAddress string `toml:"funder_address"`
}

// HasKey reports whether any signing key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters and
// optional L2 credentials.
type PolymarketConfig struct {
	ClobHost      string   `toml:"clob_host"`
	GammaHost     string   `toml:"gamma_host"`
	DataHost      string   `toml:"data_host"`
	ChainID       int      `toml:"chain_id"`
	SignatureType int      `toml:"signature_type"`
	ApiKey        string   `toml:"api_key"`
	ApiSecret     string   `toml:"api_secret"`
	ApiPassphrase string   `toml:"api_passphrase"`
	HTTPTimeout   duration `toml:"http_timeout"`

	// BalanceCacheTTL is how long a fetched balance is reused. Zero disables
	// the cache.
	BalanceCacheTTL duration `toml:"balance_cache_ttl"`
}

// DiscoveryConfig holds market fetch limits, scheduling and the per-profile
// scoring parameters.
type DiscoveryConfig struct {
	PageSize         int      `toml:"page_size"`
	MaxPages         int      `toml:"max_pages"`
	FetchConcurrency int      `toml:"fetch_concurrency"`
	ScoreConcurrency int      `toml:"score_concurrency"`
	SportsTagTTL     duration `toml:"sports_tag_ttl"`
	ScanInterval     duration `toml:"scan_interval"`
	SuggestionTTL    duration `toml:"suggestion_ttl"`
	// Profiles lists the profiles the daemon runs on every tick.
	Profiles []string `toml:"profiles"`

	Urgent ProfileConfig `toml:"urgent"`
	Live   ProfileConfig `toml:"live"`
}

// Profile returns the named profile block.
func (d DiscoveryConfig) Profile(name string) (ProfileConfig, bool) {
	switch strings.ToLower(name) {
	case "urgent":
		return d.Urgent, true
	case "live":
		return d.Live, true
	}
	return ProfileConfig{}, false
}

// ProfileConfig is one discovery profile.
type ProfileConfig struct {
	Mode           string  `toml:"mode"` // "urgent" or "live"
	LookaheadHours float64 `toml:"lookahead_hours"`
	LookbackHours  float64 `toml:"lookback_hours"`
	MinPrice       float64 `toml:"min_price"`
	MaxPrice       float64 `toml:"max_price"`
	MinLiquidity   float64 `toml:"min_liquidity"`
	MaxResults     int     `toml:"max_results"`
	BestMatch      bool    `toml:"best_match"`
	EdgeFilter     bool    `toml:"edge_filter"`
	MinEdgeBps     float64 `toml:"min_edge_bps"`
	SizeCap        float64 `toml:"size_cap"`
}

// TradingConfig controls execution of suggestions and the position monitor.
type TradingConfig struct {
	AutoExecute       bool     `toml:"auto_execute"`
	DefaultSize       float64  `toml:"default_size"`
	StopLossPct       float64  `toml:"stop_loss_pct"`
	TakeProfitPct     float64  `toml:"take_profit_pct"`
	MonitorInterval   duration `toml:"monitor_interval"`
	MaxOpenTradesScan int      `toml:"max_open_trades_scan"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	// CORSOrigins lists browser origins allowed on the API and the
	// websocket. "*" allows any; empty means same-origin only.
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards mutating routes and /ws when set.
	APIKey string `toml:"api_key"`
	// RateLimit caps mutating requests per client IP per RateWindow; zero
	// disables the limiter.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:        "https://clob.polymarket.com",
			GammaHost:       "https://gamma-api.polymarket.com",
			DataHost:        "https://data-api.polymarket.com",
			ChainID:         137,
			SignatureType:   0,
			HTTPTimeout:     duration{30 * time.Second},
			BalanceCacheTTL: duration{30 * time.Second},
		},
		Discovery: DiscoveryConfig{
			PageSize:         100,
			MaxPages:         50,
			FetchConcurrency: 10,
			ScoreConcurrency: 10,
			SportsTagTTL:     duration{6 * time.Hour},
			ScanInterval:     duration{5 * time.Minute},
			SuggestionTTL:    duration{time.Hour},
			Profiles:         []string{"urgent", "live"},
			Urgent: ProfileConfig{
				Mode:           "urgent",
				LookaheadHours: 6,
				MinPrice:       0.80,
				MaxPrice:       0.90,
				MinLiquidity:   1000,
				MaxResults:     5,
				SizeCap:        10,
			},
			Live: ProfileConfig{
				Mode:          "live",
				LookbackHours: 4,
				MinPrice:      0.93,
				MaxPrice:      0.96,
				MinLiquidity:  500,
				MaxResults:    5,
				SizeCap:       10,
			},
		},
		Trading: TradingConfig{
			AutoExecute:       false,
			DefaultSize:       1,
			StopLossPct:       0.15,
			TakeProfitPct:     0.25,
			MonitorInterval:   duration{time.Minute},
			MaxOpenTradesScan: 50,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polytrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polytrade-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			TelegramAPIURL: "https://api.telegram.org",
			Events:         []string{"suggestions", "trade_opened", "trade_closed", "error"},
		},
		Mode:     "daemon",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"daemon":  true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsWallet reports whether the configured mode can place orders.
func (c *Config) NeedsWallet() bool {
	m := strings.ToLower(c.Mode)
	return m == "monitor" || c.Trading.AutoExecute
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, daemon, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.NeedsWallet() && !c.Wallet.HasKey() {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode+" or auto_execute")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	if c.Polymarket.BalanceCacheTTL.Duration < 0 {
		errs = append(errs, "polymarket: balance_cache_ttl must be >= 0")
	}
	ak := c.Polymarket.ApiKey != ""
	as := c.Polymarket.ApiSecret != ""
	ap := c.Polymarket.ApiPassphrase != ""
	if (ak || as || ap) && !(ak && as && ap) {
		errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set together")
	}

	// Discovery
	d := c.Discovery
	if d.PageSize < 1 {
		errs = append(errs, "discovery: page_size must be >= 1")
	}
	if d.MaxPages < 1 {
		errs = append(errs, "discovery: max_pages must be >= 1")
	}
	if d.FetchConcurrency < 1 || d.ScoreConcurrency < 1 {
		errs = append(errs, "discovery: fetch_concurrency and score_concurrency must be >= 1")
	}
	if d.ScanInterval.Duration <= 0 {
		errs = append(errs, "discovery: scan_interval must be positive")
	}
	if len(d.Profiles) == 0 {
		errs = append(errs, "discovery: profiles must name at least one profile")
	}
	for _, name := range d.Profiles {
		p, ok := d.Profile(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("discovery: unknown profile %q (valid: urgent, live)", name))
			continue
		}
		errs = append(errs, p.validate(name)...)
	}

	// Trading
	t := c.Trading
	if t.DefaultSize <= 0 {
		errs = append(errs, "trading: default_size must be > 0")
	}
	if t.StopLossPct <= 0 || t.StopLossPct >= 1 {
		errs = append(errs, "trading: stop_loss_pct must be in (0, 1)")
	}
	if t.TakeProfitPct <= 0 {
		errs = append(errs, "trading: take_profit_pct must be > 0")
	}
	if t.MonitorInterval.Duration <= 0 {
		errs = append(errs, "trading: monitor_interval must be positive")
	}
	if t.MaxOpenTradesScan < 1 {
		errs = append(errs, "trading: max_open_trades_scan must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled || strings.EqualFold(c.Mode, "server") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p ProfileConfig) validate(name string) []string {
	var errs []string
	switch p.Mode {
	case "urgent":
		if p.LookaheadHours <= 0 {
			errs = append(errs, fmt.Sprintf("discovery.%s: lookahead_hours must be > 0", name))
		}
	case "live":
		if p.LookbackHours <= 0 {
			errs = append(errs, fmt.Sprintf("discovery.%s: lookback_hours must be > 0", name))
		}
	default:
		errs = append(errs, fmt.Sprintf("discovery.%s: mode must be urgent or live, got %q", name, p.Mode))
	}
	if p.MinPrice <= 0 || p.MaxPrice >= 1 || p.MinPrice > p.MaxPrice {
		errs = append(errs, fmt.Sprintf("discovery.%s: price band [%v, %v] must satisfy 0 < min <= max < 1", name, p.MinPrice, p.MaxPrice))
	}
	if p.MinLiquidity < 0 {
		errs = append(errs, fmt.Sprintf("discovery.%s: min_liquidity must be >= 0", name))
	}
	if p.MaxResults < 1 {
		errs = append(errs, fmt.Sprintf("discovery.%s: max_results must be >= 1", name))
	}
	return errs
}
