package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRADE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYTRADE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYTRADE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYTRADE_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.FunderAddress, "POLYTRADE_WALLET_FUNDER_ADDRESS")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYTRADE_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYTRADE_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYTRADE_POLYMARKET_DATA_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYTRADE_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYTRADE_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "POLYTRADE_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLYTRADE_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYTRADE_POLYMARKET_API_PASSPHRASE")
	setDuration(&cfg.Polymarket.HTTPTimeout, "POLYTRADE_POLYMARKET_HTTP_TIMEOUT")
	setDuration(&cfg.Polymarket.BalanceCacheTTL, "POLYTRADE_POLYMARKET_BALANCE_CACHE_TTL")

	// ── Discovery ──
	setInt(&cfg.Discovery.PageSize, "POLYTRADE_DISCOVERY_PAGE_SIZE")
	setInt(&cfg.Discovery.MaxPages, "POLYTRADE_DISCOVERY_MAX_PAGES")
	setInt(&cfg.Discovery.FetchConcurrency, "POLYTRADE_DISCOVERY_FETCH_CONCURRENCY")
	setInt(&cfg.Discovery.ScoreConcurrency, "POLYTRADE_DISCOVERY_SCORE_CONCURRENCY")
	setDuration(&cfg.Discovery.SportsTagTTL, "POLYTRADE_DISCOVERY_SPORTS_TAG_TTL")
	setDuration(&cfg.Discovery.ScanInterval, "POLYTRADE_DISCOVERY_SCAN_INTERVAL")
	setDuration(&cfg.Discovery.SuggestionTTL, "POLYTRADE_DISCOVERY_SUGGESTION_TTL")
	setStringSlice(&cfg.Discovery.Profiles, "POLYTRADE_DISCOVERY_PROFILES")
	setFloat64(&cfg.Discovery.Urgent.LookaheadHours, "POLYTRADE_DISCOVERY_URGENT_LOOKAHEAD_HOURS")
	setFloat64(&cfg.Discovery.Urgent.MinPrice, "POLYTRADE_DISCOVERY_URGENT_MIN_PRICE")
	setFloat64(&cfg.Discovery.Urgent.MaxPrice, "POLYTRADE_DISCOVERY_URGENT_MAX_PRICE")
	setFloat64(&cfg.Discovery.Urgent.MinLiquidity, "POLYTRADE_DISCOVERY_URGENT_MIN_LIQUIDITY")
	setFloat64(&cfg.Discovery.Live.LookbackHours, "POLYTRADE_DISCOVERY_LIVE_LOOKBACK_HOURS")
	setFloat64(&cfg.Discovery.Live.MinPrice, "POLYTRADE_DISCOVERY_LIVE_MIN_PRICE")
	setFloat64(&cfg.Discovery.Live.MaxPrice, "POLYTRADE_DISCOVERY_LIVE_MAX_PRICE")
	setFloat64(&cfg.Discovery.Live.MinLiquidity, "POLYTRADE_DISCOVERY_LIVE_MIN_LIQUIDITY")

	// ── Trading ──
	setBool(&cfg.Trading.AutoExecute, "POLYTRADE_TRADING_AUTO_EXECUTE")
	setFloat64(&cfg.Trading.DefaultSize, "POLYTRADE_TRADING_DEFAULT_SIZE")
	setFloat64(&cfg.Trading.StopLossPct, "POLYTRADE_TRADING_STOP_LOSS_PCT")
	setFloat64(&cfg.Trading.TakeProfitPct, "POLYTRADE_TRADING_TAKE_PROFIT_PCT")
	setDuration(&cfg.Trading.MonitorInterval, "POLYTRADE_TRADING_MONITOR_INTERVAL")
	setInt(&cfg.Trading.MaxOpenTradesScan, "POLYTRADE_TRADING_MAX_OPEN_TRADES_SCAN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYTRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYTRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYTRADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYTRADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRADE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRADE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRADE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRADE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYTRADE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRADE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYTRADE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYTRADE_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPIURL, "POLYTRADE_NOTIFY_TELEGRAM_API_URL")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYTRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYTRADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRADE_MODE")
	setStr(&cfg.LogLevel, "POLYTRADE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
