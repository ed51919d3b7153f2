package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// SuggestionStore implements domain.SuggestionStore using PostgreSQL.
type SuggestionStore struct {
	pool *pgxpool.Pool
}

// NewSuggestionStore creates a new SuggestionStore backed by the given pool.
func NewSuggestionStore(pool *pgxpool.Pool) *SuggestionStore {
	return &SuggestionStore{pool: pool}
}

const suggestionSelectCols = `id::text, profile, market_id, condition_id, title, token_id,
	side, outcome, outcome_index, price, best_bid, edge_bps, size_hint,
	liquidity, volume_24h, yes_probability, no_probability, event_time,
	hours_until, priority, urgency_rank, neg_risk, created_at, expires_at`

func scanSuggestion(row pgx.Row) (domain.Suggestion, error) {
	var (
		s         domain.Suggestion
		priority  string
		expiresAt *time.Time
	)
	err := row.Scan(
		&s.ID, &s.Profile, &s.MarketID, &s.ConditionID, &s.Title, &s.TokenID,
		&s.Side, &s.Outcome, &s.OutcomeIndex, &s.Price, &s.BestBid, &s.EdgeBps, &s.SizeHint,
		&s.Liquidity, &s.Volume24h, &s.YesProbability, &s.NoProbability, &s.EventTime,
		&s.HoursUntil, &priority, &s.UrgencyRank, &s.NegRisk, &s.CreatedAt, &expiresAt,
	)
	if err != nil {
		return domain.Suggestion{}, err
	}
	s.Priority = domain.Priority(priority)
	if expiresAt != nil {
		s.ExpiresAt = *expiresAt
	}
	return s, nil
}

// InsertBatch stores a run's suggestions in one round trip. Re-inserting an
// existing id is a no-op.
func (s *SuggestionStore) InsertBatch(ctx context.Context, suggestions []domain.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	const query = `
		INSERT INTO suggestions (
			id, profile, market_id, condition_id, title, token_id,
			side, outcome, outcome_index, price, best_bid, edge_bps, size_hint,
			liquidity, volume_24h, yes_probability, no_probability, event_time,
			hours_until, priority, urgency_rank, neg_risk, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, sg := range suggestions {
		batch.Queue(query,
			sg.ID, sg.Profile, sg.MarketID, sg.ConditionID, sg.Title, sg.TokenID,
			sg.Side, sg.Outcome, sg.OutcomeIndex, sg.Price, sg.BestBid, sg.EdgeBps, sg.SizeHint,
			sg.Liquidity, sg.Volume24h, sg.YesProbability, sg.NoProbability, sg.EventTime,
			sg.HoursUntil, string(sg.Priority), sg.UrgencyRank, sg.NegRisk, sg.CreatedAt, nullableTime(sg.ExpiresAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range suggestions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert suggestion batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByID returns one suggestion or domain.ErrNotFound.
func (s *SuggestionStore) GetByID(ctx context.Context, id string) (domain.Suggestion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+suggestionSelectCols+` FROM suggestions WHERE id = $1`, id)
	sg, err := scanSuggestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Suggestion{}, fmt.Errorf("postgres: suggestion %s: %w", id, domain.ErrNotFound)
		}
		return domain.Suggestion{}, fmt.Errorf("postgres: get suggestion %s: %w", id, err)
	}
	return sg, nil
}

// ListRecent returns suggestions newest first.
func (s *SuggestionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Suggestion, error) {
	query, args := listQuery(`SELECT `+suggestionSelectCols+` FROM suggestions WHERE 1=1`, nil, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list suggestions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan suggestion: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list suggestions: %w", err)
	}
	return out, nil
}

var _ domain.SuggestionStore = (*SuggestionStore)(nil)
