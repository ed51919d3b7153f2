package domain

import "time"

// Priority labels how time-critical a suggestion is.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
)

// Rank returns the sort rank of a priority; lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	default:
		return 99
	}
}

// Suggestion is a single trade idea produced by discovery. It is immutable
// once returned; callers own it.
type Suggestion struct {
	ID             string    `json:"id"`
	MarketID       string    `json:"market_id"`
	ConditionID    string    `json:"condition_id"`
	Title          string    `json:"title"`
	TokenID        string    `json:"token_id"`
	Side           string    `json:"side"` // BUY_YES, BUY_NO or BUY_<OUTCOME>
	Outcome        string    `json:"outcome"`
	OutcomeIndex   int       `json:"outcome_index"`
	Price          float64   `json:"price"`
	BestBid        float64   `json:"best_bid"`
	EdgeBps        float64   `json:"edge_bps"`
	SizeHint       float64   `json:"size_hint"`
	Liquidity      float64   `json:"liquidity"`
	Volume24h      float64   `json:"volume24h"`
	YesProbability float64   `json:"yes_probability"`
	NoProbability  float64   `json:"no_probability"`
	EventTime      time.Time `json:"event_time"`
	HoursUntil     float64   `json:"hours_until"`
	Priority       Priority  `json:"priority"`
	UrgencyRank    int       `json:"urgency_rank"`
	Profile        string    `json:"profile"`
	NegRisk        bool      `json:"neg_risk"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the suggestion is past its expiry at now. A zero
// ExpiresAt never expires.
func (s Suggestion) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
