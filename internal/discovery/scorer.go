package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
)

const (
	DefaultMinPrice         = 0.80
	DefaultMaxPrice         = 0.90
	DefaultMinLiquidity     = 1000
	DefaultMaxResults       = 5
	DefaultScoreConcurrency = 10
	DefaultSizeFraction     = 0.01
	DefaultSizeCap          = 10
	DefaultRateLimitPause   = 100 * time.Millisecond
)

// ScoreParams controls one scoring pass.
type ScoreParams struct {
	MinPrice     float64
	MaxPrice     float64
	MinLiquidity float64
	MaxResults   int
	Concurrency  int

	// BestMatch evaluates every outcome and keeps the highest edge instead
	// of stopping at the first ask inside the band.
	BestMatch bool

	// EdgeFilter rejects suggestions below MinEdgeBps. The edge is the skew
	// between mid and ask on the same book, so it is almost always <= 0;
	// leave the filter off unless the threshold accounts for that.
	EdgeFilter bool
	MinEdgeBps float64

	SizeFraction   float64
	SizeCap        float64
	RateLimitPause time.Duration
}

// DefaultScoreParams returns the urgent-market scoring defaults.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{
		MinPrice:       DefaultMinPrice,
		MaxPrice:       DefaultMaxPrice,
		MinLiquidity:   DefaultMinLiquidity,
		MaxResults:     DefaultMaxResults,
		Concurrency:    DefaultScoreConcurrency,
		SizeFraction:   DefaultSizeFraction,
		SizeCap:        DefaultSizeCap,
		RateLimitPause: DefaultRateLimitPause,
	}
}

// Validate reports caller misconfiguration. It is the only error Score
// returns.
func (p ScoreParams) Validate() error {
	var errs []string
	if p.MinPrice < 0 || p.MinPrice > 1 || p.MaxPrice < 0 || p.MaxPrice > 1 {
		errs = append(errs, fmt.Sprintf("price band [%g, %g] must lie within [0, 1]", p.MinPrice, p.MaxPrice))
	}
	if p.MinPrice > p.MaxPrice {
		errs = append(errs, fmt.Sprintf("min_price %g exceeds max_price %g", p.MinPrice, p.MaxPrice))
	}
	if p.MaxResults < 1 {
		errs = append(errs, "max_results must be >= 1")
	}
	if p.Concurrency < 1 {
		errs = append(errs, "concurrency must be >= 1")
	}
	if p.MinLiquidity < 0 {
		errs = append(errs, "min_liquidity must be >= 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidParams, strings.Join(errs, "; "))
	}
	return nil
}

func (p ScoreParams) withDefaults() ScoreParams {
	if p.SizeFraction <= 0 {
		p.SizeFraction = DefaultSizeFraction
	}
	if p.SizeCap <= 0 {
		p.SizeCap = DefaultSizeCap
	}
	if p.RateLimitPause <= 0 {
		p.RateLimitPause = DefaultRateLimitPause
	}
	return p
}

// Scorer prices candidates against live quotes and emits suggestions.
type Scorer struct {
	quotes domain.QuoteSource
	logger *slog.Logger
	now    func() time.Time
}

// NewScorer creates a Scorer that quotes through quotes.
func NewScorer(quotes domain.QuoteSource, logger *slog.Logger) *Scorer {
	return &Scorer{
		quotes: quotes,
		logger: logger.With(slog.String("component", "scorer")),
		now:    time.Now,
	}
}

// Score evaluates candidates in parallel and returns at most MaxResults
// suggestions in acceptance order. Once the quota is filled the remaining
// work is cancelled and late results are dropped. Per-market failures only
// reject that market; the error is non-nil only for invalid params.
func (s *Scorer) Score(ctx context.Context, candidates []Candidate, p ScoreParams) ([]domain.Suggestion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		accepted []domain.Suggestion
	)

	var g errgroup.Group
	g.SetLimit(p.Concurrency)
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			sug, ok := s.scoreOne(ctx, c, p)
			if !ok {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if len(accepted) >= p.MaxResults {
				return nil
			}
			accepted = append(accepted, sug)
			if len(accepted) >= p.MaxResults {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return accepted, nil
}

type outcomeMatch struct {
	index   int
	quote   domain.Quote
	edgeBps float64
}

func (s *Scorer) scoreOne(ctx context.Context, c Candidate, p ScoreParams) (domain.Suggestion, bool) {
	m := c.Market
	log := s.logger.With(slog.String("market_id", m.ID))

	if len(m.TokenIDs) == 0 {
		log.DebugContext(ctx, "no token ids, skipping")
		return domain.Suggestion{}, false
	}
	if m.Liquidity < p.MinLiquidity {
		log.DebugContext(ctx, "below liquidity floor",
			slog.Float64("liquidity", m.Liquidity),
			slog.Float64("min_liquidity", p.MinLiquidity),
		)
		return domain.Suggestion{}, false
	}

	var best *outcomeMatch
	for i, tokenID := range m.TokenIDs {
		if ctx.Err() != nil {
			return domain.Suggestion{}, false
		}

		q, err := s.quotes.GetQuote(ctx, tokenID)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				metrics.QuoteErrors.WithLabelValues("rate_limited").Inc()
				sleepCtx(ctx, p.RateLimitPause)
			} else {
				metrics.QuoteErrors.WithLabelValues("other").Inc()
				log.DebugContext(ctx, "quote failed",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if !q.HasAsk() || q.BestAsk < p.MinPrice || q.BestAsk > p.MaxPrice {
			continue
		}

		match := outcomeMatch{index: i, quote: q, edgeBps: EdgeBps(q)}
		if !p.BestMatch {
			best = &match
			break
		}
		if best == nil || match.edgeBps > best.edgeBps {
			best = &match
		}
	}

	if best == nil {
		return domain.Suggestion{}, false
	}
	if p.EdgeFilter && best.edgeBps < p.MinEdgeBps {
		log.DebugContext(ctx, "edge below threshold", slog.Float64("edge_bps", best.edgeBps))
		return domain.Suggestion{}, false
	}

	return s.buildSuggestion(c, *best, p), true
}

func (s *Scorer) buildSuggestion(c Candidate, match outcomeMatch, p ScoreParams) domain.Suggestion {
	m := c.Market
	outcome := m.OutcomeName(match.index)
	ask := match.quote.BestAsk

	yes := 1 - ask
	if match.index == 0 || strings.EqualFold(outcome, "yes") {
		yes = ask
	}

	return domain.Suggestion{
		ID:             uuid.NewString(),
		MarketID:       m.ID,
		ConditionID:    m.ConditionID,
		Title:          m.Question,
		TokenID:        m.TokenIDs[match.index],
		Side:           sideFor(match.index, outcome),
		Outcome:        outcome,
		OutcomeIndex:   match.index,
		Price:          ask,
		BestBid:        match.quote.BestBid,
		EdgeBps:        match.edgeBps,
		SizeHint:       sizeHint(m.Liquidity, p),
		Liquidity:      m.Liquidity,
		Volume24h:      m.Volume24h,
		YesProbability: yes,
		NoProbability:  1 - yes,
		EventTime:      c.EventTime,
		HoursUntil:     c.HoursUntil,
		Priority:       c.Priority,
		UrgencyRank:    c.Priority.Rank(),
		NegRisk:        m.NegRisk,
		CreatedAt:      s.now().UTC(),
	}
}

// EdgeBps is the bid/ask skew heuristic: (mid - ask) / ask in basis points,
// or 0 without an ask. It is not a fair-value edge.
func EdgeBps(q domain.Quote) float64 {
	if q.BestAsk <= 0 {
		return 0
	}
	return (q.Mid() - q.BestAsk) * 10000 / q.BestAsk
}

func sideFor(index int, outcome string) string {
	if index == 0 {
		return "BUY_YES"
	}
	if outcome == "" || strings.EqualFold(outcome, "no") {
		return "BUY_NO"
	}
	return "BUY_" + strings.ToUpper(strings.Join(strings.Fields(outcome), "_"))
}

func sizeHint(liquidity float64, p ScoreParams) float64 {
	if liquidity <= 0 {
		return 1
	}
	return math.Min(liquidity*p.SizeFraction, p.SizeCap)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
