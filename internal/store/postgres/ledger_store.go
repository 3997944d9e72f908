package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. The ledger is
// append-only: an upstream id, once present, is never removed.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// InsertIfAbsent records an upstream id and reports whether this call was the
// one that inserted it. Concurrent callers racing on the same id see exactly
// one true result.
func (s *LedgerStore) InsertIfAbsent(ctx context.Context, upstreamID string) (bool, error) {
	const query = `
		INSERT INTO ingest_ledger (upstream_id) VALUES ($1)
		ON CONFLICT (upstream_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, upstreamID)
	if err != nil {
		return false, fmt.Errorf("postgres: insert ledger entry %s: %w", upstreamID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Contains reports whether an upstream id has already been recorded.
func (s *LedgerStore) Contains(ctx context.Context, upstreamID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ingest_ledger WHERE upstream_id = $1)`,
		upstreamID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check ledger entry %s: %w", upstreamID, err)
	}
	return exists, nil
}
