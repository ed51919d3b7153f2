package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/polytrade/internal/discovery"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/notify"
)

// Runner executes one discovery pass. *discovery.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, prof discovery.Profile) (discovery.Result, error)
}

// Executor opens a trade from a suggestion. *TradeService satisfies it.
type Executor interface {
	Execute(ctx context.Context, s domain.Suggestion, size float64) (domain.Trade, error)
}

const defaultScanLockTTL = 5 * time.Minute

// SuggestionService runs discovery profiles and fans the results out to the
// store, the archive, the notifier and the signal bus.
type SuggestionService struct {
	runner   Runner
	profiles map[string]discovery.Profile
	store    domain.SuggestionStore
	ttl      time.Duration
	logger   *slog.Logger

	archiver domain.SuggestionArchiver
	notifier *notify.Notifier
	cooldown *Dedup
	bus      domain.SignalBus
	locks    domain.LockManager
	lockTTL  time.Duration
	executor Executor
	autoSize float64

	now func() time.Time
}

// NewSuggestionService creates a SuggestionService. ttl is how long a
// suggestion stays executable; zero means one hour.
func NewSuggestionService(
	runner Runner,
	profiles []discovery.Profile,
	store domain.SuggestionStore,
	ttl time.Duration,
	logger *slog.Logger,
) *SuggestionService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	byName := make(map[string]discovery.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}
	return &SuggestionService{
		runner:   runner,
		profiles: byName,
		store:    store,
		ttl:      ttl,
		lockTTL:  defaultScanLockTTL,
		logger:   logger.With(slog.String("component", "suggestion_service")),
		now:      time.Now,
	}
}

// WithArchiver attaches cold storage for every non-empty batch.
func (s *SuggestionService) WithArchiver(a domain.SuggestionArchiver) *SuggestionService {
	s.archiver = a
	return s
}

// WithNotifier attaches the chat notifier.
func (s *SuggestionService) WithNotifier(n *notify.Notifier) *SuggestionService {
	s.notifier = n
	return s
}

// WithNotifyCooldown stops the same market and side from being announced
// again within d. Storage and the signal bus still see every suggestion.
func (s *SuggestionService) WithNotifyCooldown(d time.Duration) *SuggestionService {
	if d > 0 {
		s.cooldown = NewDedup(d)
	}
	return s
}

// WithSignalBus attaches the bus that feeds websocket clients.
func (s *SuggestionService) WithSignalBus(bus domain.SignalBus) *SuggestionService {
	s.bus = bus
	return s
}

// WithLocks guards each profile run with a distributed lock held for at most
// ttl.
func (s *SuggestionService) WithLocks(locks domain.LockManager, ttl time.Duration) *SuggestionService {
	s.locks = locks
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithAutoExecute makes every scan execute its suggestions with size shares.
func (s *SuggestionService) WithAutoExecute(e Executor, size float64) *SuggestionService {
	s.executor = e
	s.autoSize = size
	return s
}

// ProfileNames returns the configured profile names in sorted order.
func (s *SuggestionService) ProfileNames() []string {
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ScanProfile runs the named profile.
func (s *SuggestionService) ScanProfile(ctx context.Context, name string) (discovery.Result, error) {
	prof, ok := s.profiles[name]
	if !ok {
		return discovery.Result{}, fmt.Errorf("suggestion_service: unknown profile %q: %w", name, domain.ErrInvalidParams)
	}
	return s.Scan(ctx, prof)
}

// ScanAll runs every configured profile in name order. A busy lock skips that
// profile; any other error stops the loop.
func (s *SuggestionService) ScanAll(ctx context.Context) ([]discovery.Result, error) {
	var out []discovery.Result
	for _, name := range s.ProfileNames() {
		res, err := s.ScanProfile(ctx, name)
		if errors.Is(err, domain.ErrLockHeld) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Scan runs prof once and distributes the suggestions. Only an invalid
// profile or a held lock fails the call; persistence, archive, notify and
// publish failures are logged.
func (s *SuggestionService) Scan(ctx context.Context, prof discovery.Profile) (discovery.Result, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "scan:"+prof.Name, s.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			s.logger.InfoContext(ctx, "scan already running elsewhere, skipping",
				slog.String("profile", prof.Name),
			)
			return discovery.Result{Profile: prof.Name}, fmt.Errorf("suggestion_service: scan %q: %w", prof.Name, err)
		case err != nil:
			s.logger.WarnContext(ctx, "scan lock unavailable, running unguarded",
				slog.String("profile", prof.Name),
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	res, err := s.runner.Run(ctx, prof)
	if err != nil {
		return res, fmt.Errorf("suggestion_service: run %q: %w", prof.Name, err)
	}

	for i := range res.Suggestions {
		created := res.Suggestions[i].CreatedAt
		if created.IsZero() {
			created = s.now().UTC()
			res.Suggestions[i].CreatedAt = created
		}
		res.Suggestions[i].ExpiresAt = created.Add(s.ttl)
	}

	if len(res.Suggestions) == 0 {
		return res, nil
	}

	s.persist(ctx, res)
	s.archive(ctx, res)
	s.announce(ctx, res)
	publish(ctx, s.bus, s.logger, domain.ChannelSuggestions, notify.EventSuggestions, res)

	if s.executor != nil {
		s.autoExecute(ctx, res.Suggestions)
	}
	return res, nil
}

func (s *SuggestionService) persist(ctx context.Context, res discovery.Result) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertBatch(ctx, res.Suggestions); err != nil {
		s.logger.ErrorContext(ctx, "persist suggestions failed",
			slog.String("profile", res.Profile),
			slog.Int("count", len(res.Suggestions)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SuggestionService) archive(ctx context.Context, res discovery.Result) {
	if s.archiver == nil {
		return
	}
	path, err := s.archiver.ArchiveBatch(ctx, res.Profile, res.StartedAt, res.Suggestions)
	if err != nil {
		s.logger.WarnContext(ctx, "archive suggestions failed",
			slog.String("profile", res.Profile),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "suggestions archived", slog.String("path", path))
}

func (s *SuggestionService) announce(ctx context.Context, res discovery.Result) {
	if !s.notifier.Enabled() {
		return
	}
	fresh := res.Suggestions
	var keys []string
	if s.cooldown != nil {
		s.cooldown.Cleanup()
		fresh = fresh[:0:0]
		for _, sg := range res.Suggestions {
			key := sg.MarketID + "|" + sg.Side
			if !s.cooldown.Seen(key) {
				fresh = append(fresh, sg)
				keys = append(keys, key)
			}
		}
		if len(fresh) == 0 {
			s.logger.DebugContext(ctx, "all suggestions already announced", slog.String("profile", res.Profile))
			return
		}
	}
	title, body := notify.FormatSuggestions(res.Profile, fresh, notify.DefaultSuggestionLimit)
	if err := s.notifier.Notify(ctx, notify.EventSuggestions, title, body); err != nil {
		// Left unmarked so the next scan announces them again.
		s.logger.WarnContext(ctx, "notify suggestions failed", slog.String("error", err.Error()))
		return
	}
	if s.cooldown != nil {
		s.cooldown.Mark(keys...)
	}
}

func (s *SuggestionService) autoExecute(ctx context.Context, suggestions []domain.Suggestion) {
	for _, sg := range suggestions {
		trade, err := s.executor.Execute(ctx, sg, s.autoSize)
		switch {
		case errors.Is(err, domain.ErrPositionExists):
			s.logger.InfoContext(ctx, "auto-execute skipped, position exists",
				slog.String("suggestion_id", sg.ID),
				slog.String("title", sg.Title),
			)
		case err != nil:
			s.logger.WarnContext(ctx, "auto-execute failed",
				slog.String("suggestion_id", sg.ID),
				slog.String("error", err.Error()),
			)
		default:
			s.logger.InfoContext(ctx, "auto-executed suggestion",
				slog.String("suggestion_id", sg.ID),
				slog.String("trade_id", trade.ID),
			)
		}
	}
}

// Recent lists the newest stored suggestions.
func (s *SuggestionService) Recent(ctx context.Context, limit int) ([]domain.Suggestion, error) {
	list, err := s.store.ListRecent(ctx, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("suggestion_service: list recent: %w", err)
	}
	return list, nil
}
