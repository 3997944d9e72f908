package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Intervals holds the loop cadence for each pass.
type Intervals struct {
	Fetch     time.Duration
	Decisions time.Duration
	Sweep     time.Duration
}

// Orchestrator runs the ingest, decisions, and sweep loops concurrently.
type Orchestrator struct {
	ingestor  *Ingestor
	decisions *Decisions
	sweeper   *Sweeper
	intervals Intervals
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator coordinating all pipeline loops.
func NewOrchestrator(ingestor *Ingestor, decisions *Decisions, sweeper *Sweeper, intervals Intervals, logger *slog.Logger) *Orchestrator {
	if intervals.Fetch <= 0 {
		intervals.Fetch = 5 * time.Minute
	}
	if intervals.Decisions <= 0 {
		intervals.Decisions = time.Minute
	}
	if intervals.Sweep <= 0 {
		intervals.Sweep = time.Hour
	}
	return &Orchestrator{
		ingestor:  ingestor,
		decisions: decisions,
		sweeper:   sweeper,
		intervals: intervals,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts every configured loop as a goroutine in an errgroup. A
// non-context error from any loop cancels the rest and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("fetch_interval", o.intervals.Fetch),
		slog.Duration("decisions_interval", o.intervals.Decisions),
		slog.Duration("sweep_interval", o.intervals.Sweep),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.ingestor != nil {
		g.Go(func() error {
			o.logger.Info("starting ingest loop")
			err := o.ingestor.RunLoop(ctx, o.intervals.Fetch)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("ingest loop: %w", err)
		})
	}

	if o.decisions != nil {
		g.Go(func() error {
			o.logger.Info("starting decisions loop")
			err := o.decisions.RunLoop(ctx, o.intervals.Decisions)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("decisions loop: %w", err)
		})
	}

	if o.sweeper != nil {
		g.Go(func() error {
			o.logger.Info("starting sweep loop")
			err := o.sweeper.RunLoop(ctx, o.intervals.Sweep)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("sweep loop: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
