package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// SuggestionStore persists suggestions produced by discovery runs.
type SuggestionStore interface {
	InsertBatch(ctx context.Context, suggestions []Suggestion) error
	GetByID(ctx context.Context, id string) (Suggestion, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Suggestion, error)
}

// TradeStore persists trades opened from suggestions.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	// Transition moves a trade from one status to another. It returns
	// ErrNotFound when the trade is not currently in from.
	Transition(ctx context.Context, id string, from, to TradeStatus) error
	// Close records the exit of an OPEN or CLOSING trade.
	Close(ctx context.Context, trade Trade) error
	GetByID(ctx context.Context, id string) (Trade, error)
	ListByStatus(ctx context.Context, status TradeStatus, opts ListOpts) ([]Trade, error)
}

// EventStore appends trade events.
type EventStore interface {
	Append(ctx context.Context, event TradeEvent) error
	ListByTrade(ctx context.Context, tradeID string) ([]TradeEvent, error)
}
