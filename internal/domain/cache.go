package domain

import (
	"context"
	"time"
)

// SportsTagCache keeps the sports tag id set between discovery runs.
type SportsTagCache interface {
	GetSportsTags(ctx context.Context) ([]string, error)
	SetSportsTags(ctx context.Context, ids []string, ttl time.Duration) error
}

// BalanceCache keeps the last known collateral balance per wallet.
type BalanceCache interface {
	GetBalance(ctx context.Context, wallet string) (Balance, error)
	SetBalance(ctx context.Context, wallet string, b Balance) error
	InvalidateBalance(ctx context.Context, wallet string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter admits at most limit requests per key inside a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus carries JSON event envelopes between processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Signal bus channels.
const (
	ChannelSuggestions = "ch:suggestions"
	ChannelTrades      = "ch:trades"
)
