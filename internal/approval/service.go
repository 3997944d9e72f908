package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

// Service applies decisions to markets. Transitions go through the market
// store's conditional update so two concurrent decision passes can never both
// move the same market: the loser sees ErrStaleState and backs off. Every
// applied transition appends exactly one audit log row; the service performs
// no other side effects, leaving image generation, deployment, and
// notifications to the caller observing the new state.
type Service struct {
	markets domain.MarketStore
	log     domain.ApprovalLogStore
	logger  *slog.Logger
}

// NewService creates an approval Service.
func NewService(markets domain.MarketStore, log domain.ApprovalLogStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		markets: markets,
		log:     log,
		logger:  logger.With(slog.String("component", "approval")),
	}
}

// Apply moves the market according to the decision and records the audit row.
// The returned state is the market's state after the call. Stale decisions
// (terminal market, wrong stage, or a concurrent pass won the race) are
// warn-logged no-ops, never errors: the surface redelivers decision events
// and the workflow must absorb them.
func (s *Service) Apply(ctx context.Context, m domain.Market, stage domain.Stage, sd domain.SurfaceDecision) (domain.LifecycleState, error) {
	next, err := Next(m.State, stage, sd.Decision)
	if err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			s.logger.Warn("ignoring stale decision",
				slog.String("market", m.ID),
				slog.Int("stage", int(stage)),
				slog.String("decision", string(sd.Decision)),
				slog.String("state", string(m.State)),
			)
			return m.State, nil
		}
		return m.State, fmt.Errorf("approval: apply decision: %w", err)
	}

	if err := s.markets.Transition(ctx, m.ID, m.State, next); err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			s.logger.Warn("transition lost race, treating as no-op",
				slog.String("market", m.ID),
				slog.String("from", string(m.State)),
				slog.String("to", string(next)),
			)
			return m.State, nil
		}
		return m.State, fmt.Errorf("approval: transition %s: %w", m.ID, err)
	}

	ev := domain.ApprovalEvent{
		MarketID:  m.ID,
		Stage:     stage,
		Decision:  sd.Decision,
		Actor:     sd.Actor,
		CreatedAt: sd.Timestamp,
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := s.log.Append(ctx, ev); err != nil {
		// The transition already happened; losing the audit row is worth
		// surfacing loudly but must not fail the decision.
		s.logger.Error("failed to append approval event",
			slog.String("market", m.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("market transitioned",
		slog.String("market", m.ID),
		slog.Int("stage", int(stage)),
		slog.String("decision", string(sd.Decision)),
		slog.String("from", string(m.State)),
		slog.String("to", string(next)),
	)
	return next, nil
}

// SweepTimeouts rejects markets that have been waiting on a decision longer
// than horizon. It walks everything still in pending or pending_image whose
// stage handle was posted before the cutoff and applies a timeout decision to
// each; per-record races with a live decision pass resolve to whichever
// transition lands first. Returns the number of markets timed out.
func (s *Service) SweepTimeouts(ctx context.Context, horizon time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-horizon)
	swept := 0

	for _, state := range []domain.LifecycleState{domain.StatePending, domain.StatePendingImage} {
		stage, _ := StageFor(state)

		markets, err := s.markets.ListByState(ctx, state, 0)
		if err != nil {
			return swept, fmt.Errorf("approval: sweep list %s: %w", state, err)
		}

		for _, m := range markets {
			handle := m.ApprovalRef
			if stage == domain.StageImage {
				handle = m.ImageApprovalRef
			}
			if handle == nil || !handle.PostedAt.Before(cutoff) {
				continue
			}

			next, err := s.Apply(ctx, m, stage, domain.SurfaceDecision{
				Decision:  domain.DecisionTimeout,
				Actor:     "sweeper",
				Timestamp: now,
			})
			if err != nil {
				return swept, err
			}
			if next == domain.StateTimedOut {
				swept++
			}
		}
	}
	return swept, nil
}
