package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polytrade/internal/blob/s3"
	"github.com/alanyoungcy/polytrade/internal/cache/redis"
	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/discovery"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/notify"
	"github.com/alanyoungcy/polytrade/internal/platform/polymarket"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/service"
	"github.com/alanyoungcy/polytrade/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores; nil in scan mode.
	SuggestionStore domain.SuggestionStore
	TradeStore      domain.TradeStore
	EventStore      domain.EventStore

	// Caches
	SportsTagCache domain.SportsTagCache
	BalanceCache   domain.BalanceCache
	RateLimiter    domain.RateLimiter
	LockManager    domain.LockManager
	SignalBus      domain.SignalBus

	// Archiver is nil unless [s3] is enabled.
	Archiver domain.SuggestionArchiver

	Notifier *notify.Notifier
	Venue    domain.TradingVenue
	HasKey   bool

	Profiles    []discovery.Profile
	Suggestions *service.SuggestionService
	Trades      *service.TradeService // nil without stores
	Monitor     *service.MonitorService

	// HealthChecks feeds /api/health.
	HealthChecks map[string]handler.Pinger
}

// needsPostgres returns true for modes that persist suggestions or trades.
func needsPostgres(mode string) bool {
	return mode != "scan"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: map[string]handler.Pinger{}}

	profiles, err := buildProfiles(cfg.Discovery)
	if err != nil {
		return fail(err)
	}
	deps.Profiles = profiles

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx, logger); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.SuggestionStore = postgres.NewSuggestionStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.HealthChecks["postgres"] = pgClient
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SportsTagCache = redis.NewSportsTagCache(redisClient)
	deps.BalanceCache = redis.NewBalanceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.HealthChecks["redis"] = redisClient

	// --- S3 suggestion archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		deps.HealthChecks["s3"] = s3Health{s3Client}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Polymarket ---
	venue, hasKey, err := wireVenue(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if ttl := cfg.Polymarket.BalanceCacheTTL.Duration; ttl > 0 {
		venue.WithBalanceCache(deps.BalanceCache, ttl)
	}
	deps.Venue = venue
	deps.HasKey = hasKey

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, cfg.Polymarket.HTTPTimeout.Duration)
	tags := discovery.NewSportsTags(gamma, deps.SportsTagCache, cfg.Discovery.SportsTagTTL.Duration, logger)
	pipeline := discovery.NewPipeline(gamma, tags, venue, logger)

	// --- Services ---
	deps.Suggestions = service.NewSuggestionService(
		pipeline, profiles, deps.SuggestionStore, cfg.Discovery.SuggestionTTL.Duration, logger,
	).
		WithNotifier(deps.Notifier).
		WithNotifyCooldown(cfg.Discovery.SuggestionTTL.Duration).
		WithSignalBus(deps.SignalBus).
		WithLocks(deps.LockManager, 0)
	if deps.Archiver != nil {
		deps.Suggestions.WithArchiver(deps.Archiver)
	}

	if deps.TradeStore != nil {
		deps.Trades = service.NewTradeService(
			venue, deps.SuggestionStore, deps.TradeStore, deps.EventStore,
			service.TradeConfig{
				DefaultSize:   cfg.Trading.DefaultSize,
				StopLossPct:   cfg.Trading.StopLossPct,
				TakeProfitPct: cfg.Trading.TakeProfitPct,
			}, logger,
		).
			WithNotifier(deps.Notifier).
			WithSignalBus(deps.SignalBus)

		deps.Monitor = service.NewMonitorService(
			venue, deps.TradeStore, deps.EventStore,
			cfg.Trading.MonitorInterval.Duration, cfg.Trading.MaxOpenTradesScan, logger,
		).
			WithNotifier(deps.Notifier).
			WithSignalBus(deps.SignalBus)

		if cfg.Trading.AutoExecute && hasKey {
			deps.Suggestions.WithAutoExecute(deps.Trades, cfg.Trading.DefaultSize)
		}
	}

	return deps, cleanup, nil
}

// wireVenue builds the Polymarket venue. Without a wallet key it can still
// quote; orders and balance fail with ErrUnauthorized.
func wireVenue(cfg *config.Config, logger *slog.Logger) (*polymarket.Venue, bool, error) {
	pm := cfg.Polymarket
	creds := crypto.APICreds{Key: pm.ApiKey, Secret: pm.ApiSecret, Passphrase: pm.ApiPassphrase}

	var signer *crypto.Signer
	if cfg.Wallet.HasKey() {
		key, err := crypto.LoadKey(crypto.KeySource{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, false, fmt.Errorf("wire: wallet: %w", err)
		}
		signer, err = crypto.NewSigner(key, int64(pm.ChainID))
		if err != nil {
			return nil, false, fmt.Errorf("wire: signer: %w", err)
		}
		logger.Info("wallet loaded",
			slog.String("address", signer.Address().Hex()),
			slog.String("funder", cfg.Wallet.FunderAddress),
		)
	}

	clob := polymarket.NewClobClient(pm.ClobHost, pm.HTTPTimeout.Duration, signer, creds)
	data := polymarket.NewDataClient(pm.DataHost, pm.HTTPTimeout.Duration)
	return polymarket.NewVenue(clob, data, signer, cfg.Wallet.FunderAddress, pm.SignatureType, logger), signer != nil, nil
}

// s3Health adapts the S3 client's bucket probe to handler.Pinger.
type s3Health struct{ c *s3blob.Client }

func (h s3Health) Ping(ctx context.Context) error { return h.c.Health(ctx) }
