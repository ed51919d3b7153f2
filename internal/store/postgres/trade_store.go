package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id::text, COALESCE(suggestion_id::text, ''), token_id, market_id, title,
	side, size, entry_price, status, stop_loss_pct, take_profit_pct, order_id,
	exit_order_id, exit_price, pnl, pnl_pct, close_reason, created_at, closed_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		t           domain.Trade
		status      string
		closeReason string
	)
	err := row.Scan(
		&t.ID, &t.SuggestionID, &t.TokenID, &t.MarketID, &t.Title,
		&t.Side, &t.Size, &t.EntryPrice, &status, &t.StopLossPct, &t.TakeProfitPct, &t.OrderID,
		&t.ExitOrderID, &t.ExitPrice, &t.PnL, &t.PnLPct, &closeReason, &t.CreatedAt, &t.ClosedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Status = domain.TradeStatus(status)
	t.CloseReason = domain.CloseReason(closeReason)
	return t, nil
}

// Create inserts a new trade. A duplicate id returns domain.ErrAlreadyExists.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, suggestion_id, token_id, market_id, title,
			side, size, entry_price, status, stop_loss_pct, take_profit_pct, order_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, nullableUUID(t.SuggestionID), t.TokenID, t.MarketID, t.Title,
		t.Side, t.Size, t.EntryPrice, string(t.Status), t.StopLossPct, t.TakeProfitPct, t.OrderID,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// Transition is a compare-and-set on the trade status.
func (s *TradeStore) Transition(ctx context.Context, id string, from, to domain.TradeStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("postgres: trade %s %s->%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: trade %s not %s: %w", id, from, domain.ErrNotFound)
	}
	return nil
}

// Close records the exit of an OPEN or CLOSING trade. It returns
// domain.ErrNotFound when no such trade exists, so a trade is never closed
// twice.
func (s *TradeStore) Close(ctx context.Context, t domain.Trade) error {
	const query = `
		UPDATE trades SET
			status = $2, exit_order_id = $3, exit_price = $4, pnl = $5, pnl_pct = $6,
			close_reason = $7, closed_at = $8
		WHERE id = $1 AND status IN ('OPEN', 'CLOSING')`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, string(t.Status), t.ExitOrderID, t.ExitPrice, t.PnL, t.PnLPct, string(t.CloseReason), t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: close trade %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: close trade %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one trade or domain.ErrNotFound.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, fmt.Errorf("postgres: trade %s: %w", id, domain.ErrNotFound)
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByStatus returns trades with status, newest first. An empty status
// lists every trade.
func (s *TradeStore) ListByStatus(ctx context.Context, status domain.TradeStatus, opts domain.ListOpts) ([]domain.Trade, error) {
	base := `SELECT ` + tradeSelectCols + ` FROM trades WHERE 1=1`
	var args []any
	if status != "" {
		base += ` AND status = $1`
		args = append(args, string(status))
	}
	query, args := listQuery(base, args, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	return out, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
