package discovery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── Market source ──────────────────────────────────────────────────────────

type fakeSource struct {
	mu      sync.Mutex
	pages   map[int][]domain.MarketRecord // keyed by offset
	fail    map[int]error
	delay   time.Duration
	queries []domain.PageQuery

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSource) ListPage(ctx context.Context, q domain.PageQuery) ([]domain.MarketRecord, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if n <= prev || f.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[q.Offset]; err != nil {
		return nil, err
	}
	return f.pages[q.Offset], nil
}

// ─── Quote source ───────────────────────────────────────────────────────────

type quoteResult struct {
	quote domain.Quote
	err   error
}

type fakeQuotes struct {
	byToken map[string]quoteResult
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeQuotes) GetQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		}
	}
	r, ok := f.byToken[tokenID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	r.quote.TokenID = tokenID
	return r.quote, r.err
}

func ask(bid, ask float64) quoteResult {
	return quoteResult{quote: domain.Quote{BestBid: bid, BestAsk: ask}}
}

// ─── Sports tags ────────────────────────────────────────────────────────────

type fakeTagSource struct {
	ids   []string
	err   error
	calls atomic.Int32
}

func (f *fakeTagSource) SportsTagIDs(context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.ids, f.err
}

type fakeTagCache struct {
	ids []string
	ttl time.Duration
}

func (f *fakeTagCache) GetSportsTags(context.Context) ([]string, error) {
	if len(f.ids) == 0 {
		return nil, domain.ErrNotFound
	}
	return f.ids, nil
}

func (f *fakeTagCache) SetSportsTags(_ context.Context, ids []string, ttl time.Duration) error {
	f.ids = ids
	f.ttl = ttl
	return nil
}

// ─── Builders ───────────────────────────────────────────────────────────────

func market(id, question string, liquidity float64, tokens ...string) domain.MarketRecord {
	return domain.MarketRecord{
		ID:        id,
		Question:  question,
		Outcomes:  []string{"Yes", "No"},
		TokenIDs:  tokens,
		Liquidity: liquidity,
	}
}

func candidate(m domain.MarketRecord, hours float64) Candidate {
	return Candidate{
		Market:     m,
		HoursUntil: hours,
		EventTime:  time.Date(2025, 11, 9, 4, 0, 0, 0, time.UTC).Add(time.Duration(hours * float64(time.Hour))),
		Priority:   domain.PriorityUrgent,
	}
}
