package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrade/internal/server"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
)

// ScanMode runs every enabled profile once and writes the results to stdout
// as JSON.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	results, err := deps.Suggestions.ScanAll(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// DaemonMode scans on a schedule, runs the trade monitor when a wallet is
// configured, and serves the API when [server] is enabled.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.scanLoop(ctx, deps)
	})

	if deps.Monitor != nil && deps.HasKey {
		g.Go(func() error {
			return deps.Monitor.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "trade monitor disabled, no wallet key configured")
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return ignoreCanceled(g.Wait())
}

// MonitorMode runs only the stop-loss / take-profit loop.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	if deps.Monitor == nil {
		return errors.New("app: monitor mode needs postgres")
	}
	return ignoreCanceled(deps.Monitor.Run(ctx))
}

// ServerMode serves the API and websocket feed without a scan schedule.
// Scans run on POST /api/scan.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// scanLoop runs ScanAll immediately and then every scan interval.
func (a *App) scanLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Discovery.ScanInterval.Duration
	a.logger.InfoContext(ctx, "scan loop started",
		slog.Duration("interval", interval),
		slog.Any("profiles", deps.Suggestions.ProfileNames()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		results, err := deps.Suggestions.ScanAll(ctx)
		if err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "scheduled scan failed", slog.String("error", err.Error()))
		}
		for _, res := range results {
			a.logger.DebugContext(ctx, "scheduled scan done",
				slog.String("profile", res.Profile),
				slog.Int("suggestions", len(res.Suggestions)),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// startHTTPServer registers the API server and websocket hub on g and shuts
// the server down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		Profiles:       deps.Suggestions.ProfileNames(),
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Suggestions: handler.NewSuggestionHandler(deps.Suggestions, a.logger),
		Trades:      handler.NewTradeHandler(deps.Trades, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
