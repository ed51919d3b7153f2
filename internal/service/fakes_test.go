package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polytrade/internal/discovery"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── Venue ─────────────────────────────────────────────────────────────────

type fakeVenue struct {
	mu        sync.Mutex
	quotes    map[string]domain.Quote
	balance   float64
	positions []domain.VenuePosition
	orderErr  error
	orders    []domain.OrderRequest
}

func (v *fakeVenue) GetQuote(_ context.Context, tokenID string) (domain.Quote, error) {
	q, ok := v.quotes[tokenID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (v *fakeVenue) Balance(context.Context) (domain.Balance, error) {
	return domain.Balance{AvailableUSD: v.balance}, nil
}

func (v *fakeVenue) Positions(context.Context) ([]domain.VenuePosition, error) {
	return v.positions, nil
}

func (v *fakeVenue) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = append(v.orders, req)
	if v.orderErr != nil {
		return domain.OrderResult{Message: v.orderErr.Error()}, v.orderErr
	}
	return domain.OrderResult{Success: true, OrderID: "0xorder", Status: "live"}, nil
}

// ─── Stores ────────────────────────────────────────────────────────────────

type memSuggestions struct {
	mu      sync.Mutex
	byID    map[string]domain.Suggestion
	batches int
	err     error
}

func newMemSuggestions() *memSuggestions {
	return &memSuggestions{byID: map[string]domain.Suggestion{}}
}

func (m *memSuggestions) InsertBatch(_ context.Context, list []domain.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches++
	for _, s := range list {
		m.byID[s.ID] = s
	}
	return nil
}

func (m *memSuggestions) GetByID(_ context.Context, id string) (domain.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return domain.Suggestion{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSuggestions) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Suggestion
	for _, s := range m.byID {
		out = append(out, s)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memTrades struct {
	mu     sync.Mutex
	trades map[string]domain.Trade
	order  []string
}

func newMemTrades() *memTrades {
	return &memTrades{trades: map[string]domain.Trade{}}
}

func (m *memTrades) Create(_ context.Context, t domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.trades[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memTrades) Transition(_ context.Context, id string, from, to domain.TradeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.trades[id]
	if !ok || cur.Status != from {
		return domain.ErrNotFound
	}
	cur.Status = to
	m.trades[id] = cur
	return nil
}

func (m *memTrades) Close(_ context.Context, t domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.trades[t.ID]
	if !ok || (cur.Status != domain.TradeStatusOpen && cur.Status != domain.TradeStatusClosing) {
		return domain.ErrNotFound
	}
	m.trades[t.ID] = t
	return nil
}

func (m *memTrades) GetByID(_ context.Context, id string) (domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memTrades) ListByStatus(_ context.Context, status domain.TradeStatus, opts domain.ListOpts) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trade
	for _, id := range m.order {
		t := m.trades[id]
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []domain.TradeEvent
}

func (m *memEvents) Append(_ context.Context, ev domain.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) ListByTrade(_ context.Context, tradeID string) ([]domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TradeEvent
	for _, ev := range m.events {
		if ev.TradeID == tradeID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ─── Infrastructure ────────────────────────────────────────────────────────

type fakeRunner struct {
	result discovery.Result
	err    error
	runs   []string
}

func (f *fakeRunner) Run(_ context.Context, prof discovery.Profile) (discovery.Result, error) {
	f.runs = append(f.runs, prof.Name)
	res := f.result
	res.Profile = prof.Name
	res.Suggestions = append([]domain.Suggestion(nil), f.result.Suggestions...)
	return res, f.err
}

type fakeLocks struct {
	held     map[string]bool
	err      error
	released []string
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	return func() { f.released = append(f.released, key) }, nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = map[string][][]byte{}
	}
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

type fakeArchiver struct {
	batches int
	err     error
}

func (a *fakeArchiver) ArchiveBatch(_ context.Context, profile string, _ time.Time, _ []domain.Suggestion) (string, error) {
	a.batches++
	return "suggestions/" + profile + "/x.jsonl", a.err
}

type fakeExecutor struct {
	calls []string
	err   error
}

func (e *fakeExecutor) Execute(_ context.Context, s domain.Suggestion, _ float64) (domain.Trade, error) {
	e.calls = append(e.calls, s.ID)
	return domain.Trade{ID: "t-" + s.ID}, e.err
}
