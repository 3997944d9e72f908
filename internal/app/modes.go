package app

import (
	"context"

	"github.com/apemarkets/curator/internal/pipeline"
)

// FullMode runs every pipeline loop: ingest, decisions, and sweep.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in full mode")
	orch := pipeline.NewOrchestrator(deps.Ingestor, deps.Decisions, deps.Sweeper, deps.Intervals, a.logger)
	return orch.Run(ctx)
}

// IngestMode runs only the fetch-and-curate loop. Useful when review and
// deployment are handled by a separate instance.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in ingest mode")
	orch := pipeline.NewOrchestrator(deps.Ingestor, nil, nil, deps.Intervals, a.logger)
	return orch.Run(ctx)
}

// DecisionsMode runs the review polling and deployment loop plus the
// timeout sweeper, without fetching new markets.
func (a *App) DecisionsMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in decisions mode")
	orch := pipeline.NewOrchestrator(nil, deps.Decisions, deps.Sweeper, deps.Intervals, a.logger)
	return orch.Run(ctx)
}

// SweepMode performs a single timeout sweep and exits. Intended for cron.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in sweep mode")
	return deps.Sweeper.Run(ctx)
}
