package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
	"github.com/alanyoungcy/polytrade/internal/notify"
)

// TradeConfig holds the sizing and exit thresholds stamped on new trades.
type TradeConfig struct {
	DefaultSize   float64
	StopLossPct   float64
	TakeProfitPct float64
}

// TradeService executes suggestions against the venue and records the
// resulting trades.
type TradeService struct {
	venue       domain.TradingVenue
	suggestions domain.SuggestionStore
	trades      domain.TradeStore
	events      domain.EventStore
	cfg         TradeConfig
	logger      *slog.Logger

	notifier *notify.Notifier
	bus      domain.SignalBus

	now func() time.Time
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	venue domain.TradingVenue,
	suggestions domain.SuggestionStore,
	trades domain.TradeStore,
	events domain.EventStore,
	cfg TradeConfig,
	logger *slog.Logger,
) *TradeService {
	if cfg.DefaultSize <= 0 {
		cfg.DefaultSize = 1
	}
	return &TradeService{
		venue:       venue,
		suggestions: suggestions,
		trades:      trades,
		events:      events,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "trade_service")),
		now:         time.Now,
	}
}

// WithNotifier attaches the chat notifier.
func (s *TradeService) WithNotifier(n *notify.Notifier) *TradeService {
	s.notifier = n
	return s
}

// WithSignalBus attaches the bus that feeds websocket clients.
func (s *TradeService) WithSignalBus(bus domain.SignalBus) *TradeService {
	s.bus = bus
	return s
}

// ExecuteByID loads a stored suggestion and executes it.
func (s *TradeService) ExecuteByID(ctx context.Context, suggestionID string, size float64) (domain.Trade, error) {
	sg, err := s.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: get suggestion %q: %w", suggestionID, err)
	}
	return s.Execute(ctx, sg, size)
}

// Execute buys size shares of the suggested outcome at the suggested price.
// A size of zero uses the configured default.
//
// Expired suggestions, markets already held on the venue and an
// insufficient balance are rejected before any order is sent. A venue
// rejection is recorded as a FAILED trade and returned.
func (s *TradeService) Execute(ctx context.Context, sg domain.Suggestion, size float64) (domain.Trade, error) {
	if size <= 0 {
		size = s.cfg.DefaultSize
	}
	now := s.now().UTC()
	if sg.Expired(now) {
		return domain.Trade{}, fmt.Errorf("trade_service: suggestion %s expired at %s: %w",
			sg.ID, sg.ExpiresAt.Format(time.RFC3339), domain.ErrSuggestionExpired)
	}
	if sg.Price <= 0 || sg.TokenID == "" {
		return domain.Trade{}, fmt.Errorf("trade_service: suggestion %s has no price or token: %w", sg.ID, domain.ErrInvalidParams)
	}

	positions, err := s.venue.Positions(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: load positions: %w", err)
	}
	if held, ok := findPosition(positions, sg); ok {
		return domain.Trade{}, fmt.Errorf("trade_service: %q already held (%.2f shares): %w",
			held.Title, held.Size, domain.ErrPositionExists)
	}

	cost := decimal.NewFromFloat(sg.Price).Mul(decimal.NewFromFloat(size))
	bal, err := s.venue.Balance(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: load balance: %w", err)
	}
	if decimal.NewFromFloat(bal.AvailableUSD).LessThan(cost) {
		return domain.Trade{}, fmt.Errorf("trade_service: need $%s, have $%.2f: %w",
			cost.StringFixed(2), bal.AvailableUSD, domain.ErrInsufficientBalance)
	}

	trade := domain.Trade{
		ID:            uuid.NewString(),
		SuggestionID:  sg.ID,
		TokenID:       sg.TokenID,
		MarketID:      sg.MarketID,
		Title:         sg.Title,
		Side:          sg.Side,
		Size:          size,
		EntryPrice:    sg.Price,
		StopLossPct:   s.cfg.StopLossPct,
		TakeProfitPct: s.cfg.TakeProfitPct,
		CreatedAt:     now,
	}

	res, err := s.venue.PlaceOrder(ctx, domain.OrderRequest{
		TokenID: sg.TokenID,
		Side:    domain.OrderSideBuy,
		Price:   sg.Price,
		Size:    size,
		Type:    domain.OrderTypeGTC,
		NegRisk: sg.NegRisk,
	})
	if err != nil {
		trade.Status = domain.TradeStatusFailed
		trade.OrderID = res.OrderID
		s.recordFailure(ctx, trade, err)
		return trade, fmt.Errorf("trade_service: place order: %w", err)
	}

	trade.Status = domain.TradeStatusOpen
	trade.OrderID = res.OrderID
	if err := s.trades.Create(ctx, trade); err != nil {
		s.logger.ErrorContext(ctx, "order placed but trade not recorded",
			slog.String("order_id", res.OrderID),
			slog.String("token_id", sg.TokenID),
			slog.String("error", err.Error()),
		)
		return trade, fmt.Errorf("trade_service: create trade: %w", err)
	}
	s.appendEvent(ctx, domain.TradeEvent{
		TradeID: trade.ID,
		Type:    domain.TradeEventCreated,
		Reason:  "EXECUTE",
		Message: fmt.Sprintf("%s %.2f @ %.4f order %s", trade.Side, size, trade.EntryPrice, res.OrderID),
	})
	metrics.TradesTotal.WithLabelValues("opened").Inc()

	s.logger.InfoContext(ctx, "trade opened",
		slog.String("trade_id", trade.ID),
		slog.String("suggestion_id", sg.ID),
		slog.String("order_id", res.OrderID),
		slog.Float64("price", trade.EntryPrice),
		slog.Float64("size", size),
	)

	if s.notifier.Enabled() {
		title, body := notify.FormatTradeOpened(trade)
		if err := s.notifier.Notify(ctx, notify.EventTradeOpened, title, body); err != nil {
			s.logger.WarnContext(ctx, "notify trade opened failed", slog.String("error", err.Error()))
		}
	}
	publish(ctx, s.bus, s.logger, domain.ChannelTrades, notify.EventTradeOpened, trade)
	return trade, nil
}

func (s *TradeService) recordFailure(ctx context.Context, trade domain.Trade, cause error) {
	metrics.TradesTotal.WithLabelValues("failed").Inc()
	s.logger.WarnContext(ctx, "order rejected",
		slog.String("trade_id", trade.ID),
		slog.String("token_id", trade.TokenID),
		slog.String("error", cause.Error()),
	)

	if err := s.trades.Create(ctx, trade); err != nil {
		s.logger.ErrorContext(ctx, "record failed trade", slog.String("error", err.Error()))
		return
	}
	s.appendEvent(ctx, domain.TradeEvent{
		TradeID: trade.ID,
		Type:    domain.TradeEventFailed,
		Reason:  failureReason(cause),
		Message: cause.Error(),
	})

	if s.notifier.Enabled() {
		msg := fmt.Sprintf("%s\n%s", trade.Title, cause.Error())
		if err := s.notifier.Notify(ctx, notify.EventError, "Order failed", msg); err != nil {
			s.logger.WarnContext(ctx, "notify order failure failed", slog.String("error", err.Error()))
		}
	}
}

func (s *TradeService) appendEvent(ctx context.Context, ev domain.TradeEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "append trade event failed",
			slog.String("trade_id", ev.TradeID),
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// List returns trades with status, or all trades when status is empty.
func (s *TradeService) List(ctx context.Context, status domain.TradeStatus, limit int) ([]domain.Trade, error) {
	list, err := s.trades.ListByStatus(ctx, status, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("trade_service: list trades: %w", err)
	}
	return list, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return "INVALID_ORDER"
	case errors.Is(err, domain.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, domain.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, domain.ErrSigningFailed):
		return "SIGNING_FAILED"
	default:
		return "REJECTED"
	}
}

// findPosition reports a venue position on the same market as sg, matched by
// condition id or by normalized title.
func findPosition(positions []domain.VenuePosition, sg domain.Suggestion) (domain.VenuePosition, bool) {
	title := normalizeTitle(sg.Title)
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		if sg.ConditionID != "" && strings.EqualFold(p.ConditionID, sg.ConditionID) {
			return p, true
		}
		if title != "" && normalizeTitle(p.Title) == title {
			return p, true
		}
	}
	return domain.VenuePosition{}, false
}

// normalizeTitle lowercases and collapses whitespace and punctuation runs.
func normalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
