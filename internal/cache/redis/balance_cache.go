package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// balanceRetention is how long a snapshot survives in Redis. Freshness is
// judged by the caller from Balance.UpdatedAt; older snapshots only serve as
// a fallback when the venue is unreachable.
const balanceRetention = 24 * time.Hour

// BalanceCache implements domain.BalanceCache as one JSON string per wallet.
//
// Key schema:
//
//	polytrade:balance:{wallet} - JSON domain.Balance
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(wallet string) string { return keyPrefix + "balance:" + wallet }

// GetBalance returns the last stored snapshot for wallet, or
// domain.ErrNotFound.
func (bc *BalanceCache) GetBalance(ctx context.Context, wallet string) (domain.Balance, error) {
	data, err := bc.rdb.Get(ctx, balanceKey(wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Balance{}, domain.ErrNotFound
		}
		return domain.Balance{}, fmt.Errorf("redis: get balance %s: %w", wallet, err)
	}

	var b domain.Balance
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Balance{}, fmt.Errorf("redis: unmarshal balance %s: %w", wallet, err)
	}
	return b, nil
}

// SetBalance stores b as the latest snapshot for wallet.
func (bc *BalanceCache) SetBalance(ctx context.Context, wallet string, b domain.Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("redis: marshal balance %s: %w", wallet, err)
	}
	if err := bc.rdb.Set(ctx, balanceKey(wallet), data, balanceRetention).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", wallet, err)
	}
	return nil
}

// InvalidateBalance drops the snapshot for wallet.
func (bc *BalanceCache) InvalidateBalance(ctx context.Context, wallet string) error {
	if err := bc.rdb.Del(ctx, balanceKey(wallet)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s: %w", wallet, err)
	}
	return nil
}

var _ domain.BalanceCache = (*BalanceCache)(nil)
