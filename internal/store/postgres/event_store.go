package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append adds an event to a trade's log.
func (s *EventStore) Append(ctx context.Context, e domain.TradeEvent) error {
	const query = `
		INSERT INTO trade_events (id, trade_id, event_type, reason, message, pnl, pnl_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		e.ID, e.TradeID, string(e.Type), e.Reason, e.Message, e.PnL, e.PnLPct, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade event %s: %w", e.Type, err)
	}
	return nil
}

// ListByTrade returns a trade's events oldest first.
func (s *EventStore) ListByTrade(ctx context.Context, tradeID string) ([]domain.TradeEvent, error) {
	const query = `
		SELECT id::text, trade_id::text, event_type, reason, message, pnl, pnl_pct, created_at
		FROM trade_events WHERE trade_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade events: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeEvent
	for rows.Next() {
		var (
			e   domain.TradeEvent
			typ string
		)
		if err := rows.Scan(&e.ID, &e.TradeID, &typ, &e.Reason, &e.Message, &e.PnL, &e.PnLPct, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade event: %w", err)
		}
		e.Type = domain.TradeEventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trade events: %w", err)
	}
	return out, nil
}

var _ domain.EventStore = (*EventStore)(nil)
