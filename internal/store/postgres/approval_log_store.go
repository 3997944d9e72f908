package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apemarkets/curator/internal/domain"
)

// ApprovalLogStore implements domain.ApprovalLogStore using PostgreSQL.
type ApprovalLogStore struct {
	pool *pgxpool.Pool
}

// NewApprovalLogStore creates a new ApprovalLogStore backed by the given pool.
func NewApprovalLogStore(pool *pgxpool.Pool) *ApprovalLogStore {
	return &ApprovalLogStore{pool: pool}
}

// eventID returns the event's ID, generating one when the caller left it
// blank.
func eventID(ev domain.ApprovalEvent) string {
	if ev.ID != "" {
		return ev.ID
	}
	return uuid.NewString()
}

// Append records a decision event. A missing ID is generated here so callers
// can leave it blank.
func (s *ApprovalLogStore) Append(ctx context.Context, ev domain.ApprovalEvent) error {
	id := eventID(ev)

	const query = `
		INSERT INTO approval_log (id, market_id, stage, decision, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))`

	var createdAt any
	if !ev.CreatedAt.IsZero() {
		createdAt = ev.CreatedAt
	}

	_, err := s.pool.Exec(ctx, query,
		id, ev.MarketID, int(ev.Stage), string(ev.Decision), ev.Actor, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append approval event for %s: %w", ev.MarketID, err)
	}
	return nil
}

// ListByMarket returns the decision history for a market, oldest first.
func (s *ApprovalLogStore) ListByMarket(ctx context.Context, marketID string) ([]domain.ApprovalEvent, error) {
	const query = `
		SELECT id, market_id, stage, decision, actor, created_at
		FROM approval_log WHERE market_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list approval events for %s: %w", marketID, err)
	}
	defer rows.Close()

	var events []domain.ApprovalEvent
	for rows.Next() {
		var (
			ev       domain.ApprovalEvent
			stage    int
			decision string
		)
		if err := rows.Scan(&ev.ID, &ev.MarketID, &stage, &decision, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan approval event: %w", err)
		}
		ev.Stage = domain.Stage(stage)
		ev.Decision = domain.Decision(decision)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list approval events for %s: %w", marketID, err)
	}
	return events, nil
}
