package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
	"github.com/alanyoungcy/polytrade/internal/notify"
)

// Exit is the outcome of checking one open trade against the current quote.
type Exit struct {
	Price  float64
	PnL    float64
	PnLPct float64
	Reason domain.CloseReason
}

// EvaluateExit marks t against q. The mark is the bid for buy trades and the
// ask otherwise. It reports false when there is no usable mark or neither
// threshold is crossed.
func EvaluateExit(t domain.Trade, q domain.Quote) (Exit, bool) {
	mark := q.BestAsk
	if t.IsBuy() {
		mark = q.BestBid
	}
	if mark <= 0 || t.EntryPrice <= 0 {
		return Exit{}, false
	}

	entry := decimal.NewFromFloat(t.EntryPrice)
	cur := decimal.NewFromFloat(mark)
	pct := cur.Sub(entry).Div(entry)
	usd := pct.Mul(decimal.NewFromFloat(t.Size)).Mul(entry)

	exit := Exit{
		Price:  mark,
		PnL:    usd.Round(6).InexactFloat64(),
		PnLPct: pct.Round(6).InexactFloat64(),
	}
	switch {
	case t.StopLossPct > 0 && pct.LessThanOrEqual(decimal.NewFromFloat(t.StopLossPct).Neg()):
		exit.Reason = domain.CloseReasonStopLoss
	case t.TakeProfitPct > 0 && pct.GreaterThanOrEqual(decimal.NewFromFloat(t.TakeProfitPct)):
		exit.Reason = domain.CloseReasonTakeProfit
	default:
		return exit, false
	}
	return exit, true
}

// MonitorService closes open trades that cross their stop-loss or
// take-profit threshold.
type MonitorService struct {
	venue    domain.TradingVenue
	trades   domain.TradeStore
	events   domain.EventStore
	interval time.Duration
	maxOpen  int
	logger   *slog.Logger

	notifier *notify.Notifier
	bus      domain.SignalBus

	// Trades whose exit order was placed but whose close failed to store,
	// keyed by trade id. Only the store write is retried for these.
	mu      sync.Mutex
	pending map[string]pendingClose

	now func() time.Time
}

type pendingClose struct {
	trade domain.Trade
	exit  Exit
}

// NewMonitorService creates a MonitorService. interval defaults to one
// minute and maxOpen, the number of open trades checked per pass, to 50.
func NewMonitorService(
	venue domain.TradingVenue,
	trades domain.TradeStore,
	events domain.EventStore,
	interval time.Duration,
	maxOpen int,
	logger *slog.Logger,
) *MonitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxOpen <= 0 {
		maxOpen = 50
	}
	return &MonitorService{
		venue:    venue,
		trades:   trades,
		events:   events,
		interval: interval,
		maxOpen:  maxOpen,
		logger:   logger.With(slog.String("component", "monitor")),
		pending:  make(map[string]pendingClose),
		now:      time.Now,
	}
}

// WithNotifier attaches the chat notifier.
func (m *MonitorService) WithNotifier(n *notify.Notifier) *MonitorService {
	m.notifier = n
	return m
}

// WithSignalBus attaches the bus that feeds websocket clients.
func (m *MonitorService) WithSignalBus(bus domain.SignalBus) *MonitorService {
	m.bus = bus
	return m
}

// Run checks open trades every interval until ctx is done. Call in a
// goroutine.
func (m *MonitorService) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "monitor started", slog.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.CheckOnce(ctx); err != nil {
				m.logger.ErrorContext(ctx, "monitor pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// CheckOnce runs a single pass and returns the trades it closed. Per-trade
// quote and order failures are logged and the trade is retried next pass.
// A trade is claimed (OPEN to CLOSING) before its exit order is placed, so
// at most one exit order is ever sent for it.
func (m *MonitorService) CheckOnce(ctx context.Context) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := m.retryPending(ctx)
	m.warnStuck(ctx)

	open, err := m.trades.ListByStatus(ctx, domain.TradeStatusOpen, domain.ListOpts{Limit: m.maxOpen})
	if err != nil {
		return closed, fmt.Errorf("monitor: list open trades: %w", err)
	}

	for _, t := range open {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		q, err := m.venue.GetQuote(ctx, t.TokenID)
		if err != nil {
			m.logger.DebugContext(ctx, "quote failed",
				slog.String("trade_id", t.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		exit, ok := EvaluateExit(t, q)
		if !ok {
			continue
		}
		done, err := m.close(ctx, t, exit)
		if err != nil {
			m.logger.WarnContext(ctx, "close trade failed",
				slog.String("trade_id", t.ID),
				slog.String("reason", string(exit.Reason)),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed = append(closed, done)
	}

	m.logger.DebugContext(ctx, "monitor pass complete",
		slog.Int("open", len(open)),
		slog.Int("closed", len(closed)),
	)
	return closed, nil
}

// retryPending stores closes whose first write failed.
func (m *MonitorService) retryPending(ctx context.Context) []domain.Trade {
	var closed []domain.Trade
	for id, p := range m.pending {
		err := m.trades.Close(ctx, p.trade)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			delete(m.pending, id)
		case err != nil:
			m.logger.WarnContext(ctx, "close write still failing",
				slog.String("trade_id", id),
				slog.String("exit_order_id", p.trade.ExitOrderID),
				slog.String("error", err.Error()),
			)
		default:
			delete(m.pending, id)
			m.closed(ctx, p.trade, p.exit)
			closed = append(closed, p.trade)
		}
	}
	return closed
}

// warnStuck reports CLOSING trades this process is not retrying, typically
// left by a restart between the exit order and the store write. They need a
// manual check against the venue and are never re-ordered.
func (m *MonitorService) warnStuck(ctx context.Context) {
	closing, err := m.trades.ListByStatus(ctx, domain.TradeStatusClosing, domain.ListOpts{Limit: m.maxOpen})
	if err != nil {
		return
	}
	for _, t := range closing {
		if _, ok := m.pending[t.ID]; ok {
			continue
		}
		m.logger.WarnContext(ctx, "trade stuck closing, reconcile with venue",
			slog.String("trade_id", t.ID),
			slog.String("token_id", t.TokenID),
		)
	}
}

func (m *MonitorService) close(ctx context.Context, t domain.Trade, exit Exit) (domain.Trade, error) {
	if err := m.trades.Transition(ctx, t.ID, domain.TradeStatusOpen, domain.TradeStatusClosing); err != nil {
		return t, fmt.Errorf("claim trade: %w", err)
	}

	side := domain.OrderSideSell
	if !t.IsBuy() {
		side = domain.OrderSideBuy
	}
	res, err := m.venue.PlaceOrder(ctx, domain.OrderRequest{
		TokenID: t.TokenID,
		Side:    side,
		Price:   exit.Price,
		Size:    t.Size,
		Type:    domain.OrderTypeGTC,
	})
	if err != nil {
		if rerr := m.trades.Transition(ctx, t.ID, domain.TradeStatusClosing, domain.TradeStatusOpen); rerr != nil {
			m.logger.ErrorContext(ctx, "release trade failed, left CLOSING",
				slog.String("trade_id", t.ID),
				slog.String("error", rerr.Error()),
			)
		}
		return t, fmt.Errorf("place exit order: %w", err)
	}

	closedAt := m.now().UTC()
	t.Status = domain.TradeStatusClosed
	t.ExitOrderID = res.OrderID
	t.ExitPrice = exit.Price
	t.PnL = exit.PnL
	t.PnLPct = exit.PnLPct
	t.CloseReason = exit.Reason
	t.ClosedAt = &closedAt

	if err := m.trades.Close(ctx, t); err != nil {
		m.pending[t.ID] = pendingClose{trade: t, exit: exit}
		return t, fmt.Errorf("update trade, retrying next pass: %w", err)
	}
	m.closed(ctx, t, exit)
	return t, nil
}

// closed records the event, metrics and notifications for a stored close.
func (m *MonitorService) closed(ctx context.Context, t domain.Trade, exit Exit) {
	if err := m.events.Append(ctx, domain.TradeEvent{
		ID:        uuid.NewString(),
		TradeID:   t.ID,
		Type:      domain.TradeEventClosed,
		Reason:    string(exit.Reason),
		Message:   fmt.Sprintf("exit %.4f order %s", exit.Price, t.ExitOrderID),
		PnL:       exit.PnL,
		PnLPct:    exit.PnLPct,
		CreatedAt: *t.ClosedAt,
	}); err != nil {
		m.logger.WarnContext(ctx, "append close event failed",
			slog.String("trade_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
	metrics.TradesTotal.WithLabelValues("closed").Inc()

	m.logger.InfoContext(ctx, "trade closed",
		slog.String("trade_id", t.ID),
		slog.String("reason", string(exit.Reason)),
		slog.Float64("entry", t.EntryPrice),
		slog.Float64("exit", exit.Price),
		slog.Float64("pnl", exit.PnL),
	)

	if m.notifier.Enabled() {
		title, body := notify.FormatTradeClosed(t)
		if err := m.notifier.Notify(ctx, notify.EventTradeClosed, title, body); err != nil {
			m.logger.WarnContext(ctx, "notify trade closed failed", slog.String("error", err.Error()))
		}
	}
	publish(ctx, m.bus, m.logger, domain.ChannelTrades, notify.EventTradeClosed, t)
}
