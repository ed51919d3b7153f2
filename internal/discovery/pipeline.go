package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/metrics"
)

// Profile is one named parameter set for a full discovery run.
type Profile struct {
	Name   string
	Fetch  FetchParams
	Window Window
	Score  ScoreParams
}

// Validate checks the window and score params before any network call.
func (p Profile) Validate() error {
	if err := p.Window.Validate(); err != nil {
		return fmt.Errorf("discovery: profile %q: %w", p.Name, err)
	}
	if err := p.Score.Validate(); err != nil {
		return fmt.Errorf("discovery: profile %q: %w", p.Name, err)
	}
	return nil
}

// Result summarises one run.
type Result struct {
	Profile     string              `json:"profile"`
	Fetched     int                 `json:"fetched"`
	Candidates  int                 `json:"candidates"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration"`
}

// Pipeline chains fetch, urgency filter and scoring.
type Pipeline struct {
	fetcher *Fetcher
	tags    *SportsTags
	scorer  *Scorer
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline wires a pipeline. tags may be nil, in which case only the
// keyword list classifies sports markets.
func NewPipeline(source domain.MarketSource, tags *SportsTags, quotes domain.QuoteSource, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher: NewFetcher(source, logger),
		tags:    tags,
		scorer:  NewScorer(quotes, logger),
		logger:  logger.With(slog.String("component", "discovery")),
		now:     time.Now,
	}
}

// Run executes one discovery pass under prof. It fails only when prof is
// invalid; network trouble shows up as fewer or no suggestions.
func (p *Pipeline) Run(ctx context.Context, prof Profile) (Result, error) {
	if err := prof.Validate(); err != nil {
		return Result{}, err
	}

	start := p.now()
	defer metrics.ObserveDuration(metrics.RunDuration, start, prof.Name)

	var tagIDs []string
	if p.tags != nil {
		tagIDs = p.tags.Load(ctx)
	}
	classifier := NewSportsClassifier(tagIDs)

	fetch := prof.Fetch
	fetch.Keep = classifier.Keep
	records := p.fetcher.FetchAll(ctx, fetch)

	candidates := FilterUrgent(records, prof.Window, start)
	metrics.Candidates.WithLabelValues(prof.Name).Set(float64(len(candidates)))

	suggestions, err := p.scorer.Score(ctx, candidates, prof.Score)
	if err != nil {
		return Result{}, fmt.Errorf("discovery: score: %w", err)
	}
	for i := range suggestions {
		suggestions[i].Profile = prof.Name
	}
	metrics.SuggestionsTotal.WithLabelValues(prof.Name).Add(float64(len(suggestions)))

	res := Result{
		Profile:     prof.Name,
		Fetched:     len(records),
		Candidates:  len(candidates),
		Suggestions: suggestions,
		StartedAt:   start,
		Duration:    time.Since(start),
	}

	p.logger.InfoContext(ctx, "discovery run complete",
		slog.String("profile", prof.Name),
		slog.Int("sports_tags", len(tagIDs)),
		slog.Int("fetched", res.Fetched),
		slog.Int("candidates", res.Candidates),
		slog.Int("suggestions", len(suggestions)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
