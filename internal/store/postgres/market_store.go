package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apemarkets/curator/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, kind, question, category, banner_url, banner_resolved,
	event_icon_url, options, expiry, state, approval_ref, image_approval_ref,
	external_id, created_at, updated_at`

// Create inserts a new curated market row.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	optionsJSON, err := json.Marshal(m.Options)
	if err != nil {
		return fmt.Errorf("postgres: marshal options for %s: %w", m.ID, err)
	}
	approvalRef, err := marshalHandle(m.ApprovalRef)
	if err != nil {
		return fmt.Errorf("postgres: marshal approval ref for %s: %w", m.ID, err)
	}
	imageRef, err := marshalHandle(m.ImageApprovalRef)
	if err != nil {
		return fmt.Errorf("postgres: marshal image approval ref for %s: %w", m.ID, err)
	}

	const query = `
		INSERT INTO markets (
			id, kind, question, category, banner_url, banner_resolved,
			event_icon_url, options, expiry, state, approval_ref,
			image_approval_ref, external_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, NOW(), NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		m.ID, string(m.Kind), m.Question, m.Category, m.BannerURL, m.BannerResolved,
		m.EventIconURL, optionsJSON, m.Expiry, string(m.State), approvalRef,
		imageRef, m.ExternalID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: market %s: %w", m.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListByState returns markets currently in the given lifecycle state, oldest
// first so long-waiting records are visited before fresh ones.
func (s *MarketStore) ListByState(ctx context.Context, state domain.LifecycleState, limit int) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE state = $1 ORDER BY created_at ASC`
	args := []any{string(state)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by state %s: %w", state, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets by state %s: %w", state, err)
	}
	return markets, nil
}

// Transition moves a market from one lifecycle state to another. The update
// is conditional on the current state so concurrent passes cannot both win;
// a lost race surfaces as ErrStaleState.
func (s *MarketStore) Transition(ctx context.Context, id string, from, to domain.LifecycleState) error {
	const query = `
		UPDATE markets SET state = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2`

	tag, err := s.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("postgres: transition market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s not in state %s: %w", id, from, domain.ErrStaleState)
	}
	return nil
}

// SetCategory records the categorizer's label for a market.
func (s *MarketStore) SetCategory(ctx context.Context, id, category string) error {
	const query = `UPDATE markets SET category = $2, updated_at = NOW() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, category)
	if err != nil {
		return fmt.Errorf("postgres: set category for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetBanner records the resolved banner URL, which may legitimately be
// absent, and marks resolution as done either way.
func (s *MarketStore) SetBanner(ctx context.Context, id string, bannerURL *string) error {
	const query = `
		UPDATE markets SET banner_url = $2, banner_resolved = TRUE, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, bannerURL)
	if err != nil {
		return fmt.Errorf("postgres: set banner for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetApprovalRef stores the handle of the review message posted for a stage.
func (s *MarketStore) SetApprovalRef(ctx context.Context, id string, stage domain.Stage, ref domain.ApprovalHandle) error {
	refJSON, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("postgres: marshal approval ref for %s: %w", id, err)
	}

	column := "approval_ref"
	if stage == domain.StageImage {
		column = "image_approval_ref"
	}
	query := `UPDATE markets SET ` + column + ` = $2, updated_at = NOW() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, refJSON)
	if err != nil {
		return fmt.Errorf("postgres: set approval ref for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetExternalID records the identifier the deployment target assigned.
func (s *MarketStore) SetExternalID(ctx context.Context, id, externalID string) error {
	const query = `UPDATE markets SET external_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, externalID)
	if err != nil {
		return fmt.Errorf("postgres: set external id for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m           domain.Market
		kind        string
		state       string
		optionsJSON []byte
		approvalRef []byte
		imageRef    []byte
	)
	err := row.Scan(
		&m.ID, &kind, &m.Question, &m.Category, &m.BannerURL, &m.BannerResolved,
		&m.EventIconURL, &optionsJSON, &m.Expiry, &state, &approvalRef, &imageRef,
		&m.ExternalID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Kind = domain.MarketKind(kind)
	m.State = domain.LifecycleState(state)

	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &m.Options); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if m.ApprovalRef, err = unmarshalHandle(approvalRef); err != nil {
		return domain.Market{}, fmt.Errorf("unmarshal approval ref: %w", err)
	}
	if m.ImageApprovalRef, err = unmarshalHandle(imageRef); err != nil {
		return domain.Market{}, fmt.Errorf("unmarshal image approval ref: %w", err)
	}
	return m, nil
}

func marshalHandle(h *domain.ApprovalHandle) ([]byte, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

func unmarshalHandle(data []byte) (*domain.ApprovalHandle, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var h domain.ApprovalHandle
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
