// Package discovery finds time-critical sports markets and turns them into
// ranked trade suggestions. A run fetches pages of markets concurrently,
// keeps sports markets, narrows them to events that are about to start or
// already live, and scores each survivor against live quotes.
package discovery

import (
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Layouts accepted for market timestamps. The source mixes a space-separated
// form with a truncated "+00" offset and ISO-8601 with a Z suffix.
// Fractional seconds are accepted by time.Parse without a layout change.
var timeLayouts = []string{
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05Z07:00",
}

// ResolveEventTime picks the authoritative timestamp of a market and parses
// it into a UTC instant. The first non-empty of game start, event start and
// end date wins; ok is false when that value has no recognised shape.
func ResolveEventTime(m domain.MarketRecord) (t time.Time, ok bool) {
	raw := firstNonEmpty(m.GameStartTime, m.EventStartTime, m.EndDate)
	if raw == "" {
		return time.Time{}, false
	}
	return parseTimestamp(raw)
}

func parseTimestamp(raw string) (time.Time, bool) {
	// Only UTC inputs are valid. The "-07" layouts would accept any offset.
	if !strings.HasSuffix(raw, "+00") && !strings.HasSuffix(raw, "Z") {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
