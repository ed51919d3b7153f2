package discovery

import (
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// WindowMode selects how the urgency filter bounds event times.
type WindowMode string

const (
	// ModeUrgent keeps events starting within the lookahead, including ones
	// already under way.
	ModeUrgent WindowMode = "urgent"
	// ModeLive keeps only events that started within the lookback.
	ModeLive WindowMode = "live"
)

const (
	DefaultLookaheadHours = 6
	DefaultLookbackHours  = 4
)

// Window bounds the event times a filter run accepts.
type Window struct {
	Mode           WindowMode
	LookaheadHours float64
	// LookbackHours bounds how long ago an event may have started. In urgent
	// mode zero means unbounded.
	LookbackHours float64
}

// Validate reports a misconfigured window.
func (w Window) Validate() error {
	switch w.Mode {
	case ModeUrgent, ModeLive:
	default:
		return fmt.Errorf("%w: unknown window mode %q", domain.ErrInvalidParams, w.Mode)
	}
	if w.LookaheadHours < 0 || w.LookbackHours < 0 {
		return fmt.Errorf("%w: window hours must be >= 0", domain.ErrInvalidParams)
	}
	if w.Mode == ModeLive && w.LookbackHours == 0 {
		return fmt.Errorf("%w: live window needs lookback_hours > 0", domain.ErrInvalidParams)
	}
	return nil
}

// Contains reports whether an event hoursUntil hours away is inside w.
func (w Window) Contains(hoursUntil float64) bool {
	switch w.Mode {
	case ModeLive:
		return hoursUntil < 0 && hoursUntil >= -w.LookbackHours
	default:
		if w.LookbackHours > 0 && hoursUntil < -w.LookbackHours {
			return false
		}
		return hoursUntil <= w.LookaheadHours
	}
}

// Candidate is a market that passed the urgency filter.
type Candidate struct {
	Market     domain.MarketRecord
	EventTime  time.Time
	HoursUntil float64
	Priority   domain.Priority
}

// FilterUrgent keeps the records whose resolved event time falls in w and
// sorts them by hours until start, soonest (or longest running) first.
// Records without a resolvable time are dropped. Ties keep input order.
func FilterUrgent(records []domain.MarketRecord, w Window, now time.Time) []Candidate {
	var out []Candidate
	for _, m := range records {
		t, ok := ResolveEventTime(m)
		if !ok {
			continue
		}
		hours := t.Sub(now).Hours()
		if !w.Contains(hours) {
			continue
		}
		out = append(out, Candidate{
			Market:     m,
			EventTime:  t,
			HoursUntil: hours,
			Priority:   domain.PriorityUrgent,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HoursUntil < out[j].HoursUntil
	})
	return out
}
