package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apemarkets/curator/internal/approval"
	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/notify"
)

const sweepLockKey = "sweep"

// Sweeper times out records that have waited in a review stage longer than
// the horizon.
type Sweeper struct {
	approvals *approval.Service
	notifier  Notifier
	locks     domain.LockManager
	horizon   time.Duration
	lockTTL   time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper with the given timeout horizon.
func NewSweeper(approvals *approval.Service, notifier Notifier, locks domain.LockManager, horizon time.Duration, logger *slog.Logger) *Sweeper {
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &Sweeper{
		approvals: approvals,
		notifier:  notifier,
		locks:     locks,
		horizon:   horizon,
		lockTTL:   2 * time.Minute,
		logger:    logger.With(slog.String("component", "sweeper")),
	}
}

// Run executes a single sweep pass.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Debug("sweep pass already running elsewhere")
				return nil
			}
			return fmt.Errorf("pipeline: acquire sweep lock: %w", err)
		}
		defer unlock()
	}

	swept, err := s.approvals.SweepTimeouts(ctx, s.horizon, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pipeline: sweep timeouts: %w", err)
	}
	if swept == 0 {
		return nil
	}

	s.logger.Info("sweep pass complete", slog.Int("swept", swept))
	if s.notifier != nil {
		msg := fmt.Sprintf("%d market(s) timed out after %s without a decision", swept, s.horizon)
		if err := s.notifier.Notify(ctx, notify.EventSweepCompleted, "Review timeouts swept", msg); err != nil {
			s.logger.Error("notify failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// RunLoop runs the sweep pass on a repeating interval until the context is
// cancelled.
func (s *Sweeper) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("sweep pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("sweep pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
