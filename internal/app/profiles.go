package app

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/discovery"
)

// buildProfiles turns the enabled profile blocks into pipeline profiles.
func buildProfiles(cfg config.DiscoveryConfig) ([]discovery.Profile, error) {
	out := make([]discovery.Profile, 0, len(cfg.Profiles))
	seen := make(map[string]bool, len(cfg.Profiles))
	for _, raw := range cfg.Profiles {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true

		pc, ok := cfg.Profile(name)
		if !ok {
			return nil, fmt.Errorf("app: unknown discovery profile %q", raw)
		}
		prof := discovery.Profile{
			Name: name,
			Fetch: discovery.FetchParams{
				PageSize:    cfg.PageSize,
				MaxPages:    cfg.MaxPages,
				Concurrency: cfg.FetchConcurrency,
			},
			Window: discovery.Window{
				Mode:           discovery.WindowMode(strings.ToLower(pc.Mode)),
				LookaheadHours: pc.LookaheadHours,
				LookbackHours:  pc.LookbackHours,
			},
			Score: discovery.DefaultScoreParams(),
		}
		prof.Score.MinPrice = pc.MinPrice
		prof.Score.MaxPrice = pc.MaxPrice
		prof.Score.MinLiquidity = pc.MinLiquidity
		prof.Score.MaxResults = pc.MaxResults
		prof.Score.BestMatch = pc.BestMatch
		prof.Score.EdgeFilter = pc.EdgeFilter
		prof.Score.MinEdgeBps = pc.MinEdgeBps
		if cfg.ScoreConcurrency > 0 {
			prof.Score.Concurrency = cfg.ScoreConcurrency
		}
		if pc.SizeCap > 0 {
			prof.Score.SizeCap = pc.SizeCap
		}

		if err := prof.Validate(); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		out = append(out, prof)
	}
	return out, nil
}
