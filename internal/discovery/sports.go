package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// sportsKeywords catches sports markets the source forgot to tag.
var sportsKeywords = []string{
	"vs", "vs.", "football", "basketball", "baseball", "soccer",
	"nfl", "nba", "mlb", "nhl", "tennis", "golf", "boxing", "mma", "ufc",
	"cricket", "rugby", "hockey", "ncaa", "college",
	"spread", "o/u", "over/under", "moneyline", "1h", "1st half",
	"playoff", "championship", "bowl", "game", "match", "series", "tournament",
}

// SportsClassifier decides whether a market is sports related, either by tag
// or by question vocabulary.
type SportsClassifier struct {
	tags map[string]struct{}
}

// NewSportsClassifier builds a classifier over the given sports tag ids.
func NewSportsClassifier(tagIDs []string) *SportsClassifier {
	tags := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		if id = strings.TrimSpace(id); id != "" {
			tags[id] = struct{}{}
		}
	}
	return &SportsClassifier{tags: tags}
}

// Keep reports whether m should stay in the sports set.
func (c *SportsClassifier) Keep(m domain.MarketRecord) bool {
	for _, id := range m.TagIDs {
		if _, ok := c.tags[id]; ok {
			return true
		}
	}
	return matchesSportsKeyword(m.Question)
}

func matchesSportsKeyword(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range sportsKeywords {
		if containsKeyword(q, kw) {
			return true
		}
	}
	return false
}

// containsKeyword matches kw at a word start. Short keywords must also end
// on a boundary so "vs" does not match "canvas" and "nba" does not match
// "nbastore"; longer ones may be followed by a plural or suffix.
func containsKeyword(s, kw string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		left := start == 0 || !isWordByte(s[start-1])
		right := len(kw) > 3 || end == len(s) || !isWordByte(s[end])
		if left && right {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// SportsTags loads the sports tag id set through a cache.
type SportsTags struct {
	source domain.SportsTagSource
	cache  domain.SportsTagCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewSportsTags creates a tag loader. cache may be nil.
func NewSportsTags(source domain.SportsTagSource, cache domain.SportsTagCache, ttl time.Duration, logger *slog.Logger) *SportsTags {
	return &SportsTags{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "sports_tags")),
	}
}

// Load returns the current sports tag ids. Failures degrade to an empty set,
// which leaves keyword matching as the only signal.
func (s *SportsTags) Load(ctx context.Context) []string {
	if s.cache != nil {
		ids, err := s.cache.GetSportsTags(ctx)
		if err == nil && len(ids) > 0 {
			return ids
		}
		if err != nil && !isNotFound(err) {
			s.logger.WarnContext(ctx, "sports tag cache read failed", slog.String("error", err.Error()))
		}
	}

	if s.source == nil {
		return nil
	}
	ids, err := s.source.SportsTagIDs(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "sports tag lookup failed, using keywords only",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if s.cache != nil && len(ids) > 0 {
		if err := s.cache.SetSportsTags(ctx, ids, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "sports tag cache write failed", slog.String("error", err.Error()))
		}
	}
	s.logger.DebugContext(ctx, "sports tags loaded", slog.Int("count", len(ids)))
	return ids
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
