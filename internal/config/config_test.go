package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ─── Defaults ──────────────────────────────────────────────────────────────

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.15, cfg.Trading.StopLossPct)
	assert.Equal(t, 0.25, cfg.Trading.TakeProfitPct)
	assert.Equal(t, 50, cfg.Trading.MaxOpenTradesScan)
	assert.Equal(t, time.Minute, cfg.Trading.MonitorInterval.Duration)
	assert.Equal(t, time.Hour, cfg.Discovery.SuggestionTTL.Duration)
	assert.Equal(t, 6.0, cfg.Discovery.Urgent.LookaheadHours)
	assert.Equal(t, 0.93, cfg.Discovery.Live.MinPrice)
	assert.Equal(t, 30*time.Second, cfg.Polymarket.BalanceCacheTTL.Duration)
}

// ─── Load ──────────────────────────────────────────────────────────────────

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "scan"

[discovery]
scan_interval = "90s"
profiles = ["live"]

[discovery.live]
mode = "live"
lookback_hours = 2
min_price = 0.9
max_price = 0.95
min_liquidity = 250
max_results = 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Discovery.ScanInterval.Duration)
	assert.Equal(t, []string{"live"}, cfg.Discovery.Profiles)
	assert.Equal(t, 2.0, cfg.Discovery.Live.LookbackHours)
	assert.Equal(t, 3, cfg.Discovery.Live.MaxResults)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.80, cfg.Discovery.Urgent.MinPrice)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLYTRADE_MODE", "monitor")
	t.Setenv("POLYTRADE_WALLET_PRIVATE_KEY", "0xabc")
	t.Setenv("POLYTRADE_TRADING_STOP_LOSS_PCT", "0.2")
	t.Setenv("POLYTRADE_DISCOVERY_PROFILES", "urgent, live ,")
	t.Setenv("POLYTRADE_TRADING_MONITOR_INTERVAL", "30s")
	t.Setenv("POLYTRADE_POLYMARKET_BALANCE_CACHE_TTL", "0s")

	cfg, err := Load(writeTOML(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, 0.2, cfg.Trading.StopLossPct)
	assert.Equal(t, []string{"urgent", "live"}, cfg.Discovery.Profiles)
	assert.Equal(t, 30*time.Second, cfg.Trading.MonitorInterval.Duration)
	assert.Zero(t, cfg.Polymarket.BalanceCacheTTL.Duration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

// ─── Validate ──────────────────────────────────────────────────────────────

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	cfg.Trading.DefaultSize = 0
	cfg.Discovery.Urgent.MinPrice = 0.95
	cfg.Polymarket.ApiKey = "only-key"
	cfg.Polymarket.BalanceCacheTTL.Duration = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, `unknown mode "full"`)
	assert.Contains(t, msg, "trading: default_size")
	assert.Contains(t, msg, "discovery.urgent: price band")
	assert.Contains(t, msg, "must all be set together")
	assert.Contains(t, msg, "balance_cache_ttl")
}

func TestValidate_WalletRequiredForMonitor(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet:")

	cfg.Wallet.PrivateKey = "0xabc"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownProfile(t *testing.T) {
	cfg := Defaults()
	cfg.Discovery.Profiles = []string{"urgent", "overnight"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "overnight"`)
}

// ─── Redaction ─────────────────────────────────────────────────────────────

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Polymarket.ApiSecret = "s"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Polymarket.ApiSecret)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Server.APIKey)
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey)

	out.Discovery.Profiles[0] = "changed"
	assert.Equal(t, "urgent", cfg.Discovery.Profiles[0])
}
