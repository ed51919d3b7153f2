package discovery

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
)

const (
	DefaultPageSize         = 100
	DefaultMaxPages         = 50
	DefaultFetchConcurrency = 10
)

// FetchParams controls one paginated fetch.
type FetchParams struct {
	PageSize    int
	MaxPages    int
	Concurrency int
	// Keep filters records during aggregation. Nil keeps everything.
	Keep func(domain.MarketRecord) bool
}

func (p FetchParams) withDefaults() FetchParams {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultFetchConcurrency
	}
	return p
}

// Fetcher drives a MarketSource across many pages concurrently.
type Fetcher struct {
	source domain.MarketSource
	logger *slog.Logger
}

// NewFetcher creates a Fetcher over source.
func NewFetcher(source domain.MarketSource, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		logger: logger.With(slog.String("component", "fetcher")),
	}
}

// FetchAll returns the open markets across up to MaxPages pages, ordered by
// 24h volume at the source. Page 0 is fetched first; if it is empty or fails
// nothing else is requested. Later pages are fetched by a bounded pool and a
// failed page only loses its own records. The result is de-duplicated by
// market id; its order carries no meaning.
func (f *Fetcher) FetchAll(ctx context.Context, p FetchParams) []domain.MarketRecord {
	p = p.withDefaults()

	first, err := f.fetchPage(ctx, p, 0)
	if err != nil {
		f.logger.WarnContext(ctx, "first page failed", slog.String("error", err.Error()))
		return nil
	}
	if len(first) == 0 {
		return nil
	}

	// Each worker owns one slot, so no lock is needed until aggregation.
	pages := make([][]domain.MarketRecord, p.MaxPages)
	pages[0] = first

	var g errgroup.Group
	g.SetLimit(p.Concurrency)
	for page := 1; page < p.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records, err := f.fetchPage(ctx, p, page)
			if err != nil {
				f.logger.WarnContext(ctx, "page failed",
					slog.Int("page", page),
					slog.String("error", err.Error()),
				)
				return nil
			}
			pages[page] = records
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(pages, p.Keep)
}

func (f *Fetcher) fetchPage(ctx context.Context, p FetchParams, page int) ([]domain.MarketRecord, error) {
	records, err := f.source.ListPage(ctx, domain.PageQuery{
		Offset:    page * p.PageSize,
		Limit:     p.PageSize,
		Order:     "volume24hr",
		Ascending: false,
		Closed:    false,
	})
	switch {
	case err != nil:
		metrics.PagesFetched.WithLabelValues("error").Inc()
	case len(records) == 0:
		metrics.PagesFetched.WithLabelValues("empty").Inc()
	default:
		metrics.PagesFetched.WithLabelValues("ok").Inc()
	}
	return records, err
}

func aggregate(pages [][]domain.MarketRecord, keep func(domain.MarketRecord) bool) []domain.MarketRecord {
	seen := make(map[string]struct{})
	var out []domain.MarketRecord
	for _, records := range pages {
		for _, m := range records {
			if _, dup := seen[m.ID]; dup && m.ID != "" {
				continue
			}
			seen[m.ID] = struct{}{}
			if keep != nil && !keep(m) {
				continue
			}
			out = append(out, m)
		}
	}
	metrics.RecordsKept.Add(float64(len(out)))
	return out
}
