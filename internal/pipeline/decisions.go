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
	"github.com/apemarkets/curator/internal/surface"
)

// Categorizer assigns a label from the closed category set.
type Categorizer interface {
	Categorize(ctx context.Context, question string) (string, error)
}

// BatchCategorizer is implemented by categorizers that can label many
// questions in one round trip.
type BatchCategorizer interface {
	CategorizeBatch(ctx context.Context, questions []string) ([]string, error)
}

// ImageGenerator produces a banner image URL for markets without one.
type ImageGenerator interface {
	Generate(ctx context.Context, m domain.Market) (string, error)
}

// Deployer publishes an approved market and returns the identifier the
// target assigned.
type Deployer interface {
	Deploy(ctx context.Context, m domain.Market) (string, error)
}

// Notifier delivers operator alerts. notify.Notifier satisfies this.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

const decisionsLockKey = "decisions"

// listLimit bounds how many records one decisions pass visits per state.
const listLimit = 200

// Decisions runs the review-side passes: poll reviewer signals for both
// stages, move records through the lifecycle, and deploy what cleared
// review.
type Decisions struct {
	markets     domain.MarketStore
	approvals   *approval.Service
	surf        surface.Surface
	fetcher     Fetcher
	canon       Canonicalizer
	categorizer Categorizer
	images      ImageGenerator
	deployer    Deployer
	notifier    Notifier
	locks       domain.LockManager
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewDecisions creates a Decisions pass. The image generator, deployer,
// notifier, and lock manager are optional.
func NewDecisions(
	markets domain.MarketStore,
	approvals *approval.Service,
	surf surface.Surface,
	fetcher Fetcher,
	canon Canonicalizer,
	categorizer Categorizer,
	images ImageGenerator,
	deployer Deployer,
	notifier Notifier,
	locks domain.LockManager,
	logger *slog.Logger,
) *Decisions {
	return &Decisions{
		markets:     markets,
		approvals:   approvals,
		surf:        surf,
		fetcher:     fetcher,
		canon:       canon,
		categorizer: categorizer,
		images:      images,
		deployer:    deployer,
		notifier:    notifier,
		locks:       locks,
		lockTTL:     5 * time.Minute,
		logger:      logger.With(slog.String("component", "decisions")),
	}
}

// Run executes one decisions pass over both review stages and the deploy
// queue.
func (d *Decisions) Run(ctx context.Context) error {
	if d.locks != nil {
		unlock, err := d.locks.Acquire(ctx, decisionsLockKey, d.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				d.logger.Debug("decisions pass already running elsewhere")
				return nil
			}
			return fmt.Errorf("pipeline: acquire decisions lock: %w", err)
		}
		defer unlock()
	}

	if err := d.runStage(ctx, domain.StatePending, domain.StageMarket); err != nil {
		return err
	}
	if err := d.runStage(ctx, domain.StatePendingImage, domain.StageImage); err != nil {
		return err
	}
	return d.runDeploy(ctx)
}

// runStage polls reviewer signals for every record waiting in one stage and
// applies the resolved decisions.
func (d *Decisions) runStage(ctx context.Context, state domain.LifecycleState, stage domain.Stage) error {
	pending, err := d.markets.ListByState(ctx, state, listLimit)
	if err != nil {
		return fmt.Errorf("pipeline: list %s markets: %w", state, err)
	}

	if stage == domain.StageMarket {
		pending = d.primeCategories(ctx, pending)
	}

	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: decisions pass cancelled: %w", err)
		}
		d.decideOne(ctx, m, stage)
	}
	return nil
}

func (d *Decisions) decideOne(ctx context.Context, m domain.Market, stage domain.Stage) {
	handle := m.ApprovalRef
	if stage == domain.StageImage {
		handle = m.ImageApprovalRef
	}

	// No handle means the review message was never posted, usually after a
	// post failure or a crash between transition and post. Repost and let
	// the next pass read reactions. Image-stage records may also still be
	// missing their category or banner, so they go through the full
	// preparation path instead of a bare repost.
	if handle == nil {
		if stage == domain.StageImage {
			d.prepareAndPostImage(ctx, m)
			return
		}
		d.postStage(ctx, m, stage)
		return
	}

	signals, err := d.surf.PollDecisions(ctx, *handle)
	if err != nil {
		d.logger.Error("poll decisions failed",
			slog.String("market_id", m.ID),
			slog.Int("stage", int(stage)),
			slog.String("error", err.Error()))
		return
	}

	sd, ok := surface.Resolve(signals)
	if !ok {
		return
	}

	// A stage-1 approval advances to image review, which needs the category
	// and banner already attached. Prepare first; when the banner still
	// cannot be produced the record stays pending and the next pass retries
	// with the same reactions.
	if stage == domain.StageMarket && sd.Decision == domain.DecisionApprove {
		m = d.ensureCategory(ctx, m)
		m = d.ensureBanner(ctx, m)
		if m.Category == nil || m.BannerURL == nil {
			d.logger.Warn("holding stage-1 approval until market is presentable",
				slog.String("market_id", m.ID),
				slog.Bool("has_category", m.Category != nil),
				slog.Bool("has_banner", m.BannerURL != nil))
			return
		}
	}

	next, err := d.approvals.Apply(ctx, m, stage, sd)
	if err != nil {
		d.logger.Error("apply decision failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return
	}
	if next == m.State {
		return
	}

	switch next {
	case domain.StatePendingImage:
		m.State = next
		d.postStage(ctx, m, domain.StageImage)
	case domain.StateRejected:
		d.notify(ctx, notify.EventMarketRejected, "Market rejected",
			fmt.Sprintf("%s (%s) rejected by %s", m.Question, m.ID, sd.Actor))
	}
}

// prepareAndPostImage makes a market presentable for image review: category
// label, resolved banner, generated banner when the source had none, then
// the stage two post.
func (d *Decisions) prepareAndPostImage(ctx context.Context, m domain.Market) {
	m = d.ensureCategory(ctx, m)
	m = d.ensureBanner(ctx, m)
	d.postStage(ctx, m, domain.StageImage)
}

// primeCategories labels every listed market still missing a category in a
// single completion call, so stage-1 approvals do not pay one request each.
// On any batch failure the per-record path picks up the slack.
func (d *Decisions) primeCategories(ctx context.Context, ms []domain.Market) []domain.Market {
	batcher, ok := d.categorizer.(BatchCategorizer)
	if !ok {
		return ms
	}

	var idx []int
	var questions []string
	for i, m := range ms {
		if m.Category == nil {
			idx = append(idx, i)
			questions = append(questions, m.Question)
		}
	}
	if len(questions) == 0 {
		return ms
	}

	labels, err := batcher.CategorizeBatch(ctx, questions)
	if err != nil || len(labels) != len(questions) {
		d.logger.Warn("batch categorization unavailable",
			slog.Int("questions", len(questions)),
			slog.Any("error", err))
		return ms
	}

	for j, i := range idx {
		label := labels[j]
		if err := d.markets.SetCategory(ctx, ms[i].ID, label); err != nil {
			d.logger.Error("store category failed",
				slog.String("market_id", ms[i].ID),
				slog.String("error", err.Error()))
			continue
		}
		ms[i].Category = &label
	}
	return ms
}

func (d *Decisions) ensureCategory(ctx context.Context, m domain.Market) domain.Market {
	if m.Category != nil {
		return m
	}
	label, err := d.categorizer.Categorize(ctx, m.Question)
	if err != nil {
		d.logger.Error("categorize failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return m
	}
	if err := d.markets.SetCategory(ctx, m.ID, label); err != nil {
		d.logger.Error("store category failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return m
	}
	m.Category = &label
	return m
}

func (d *Decisions) ensureBanner(ctx context.Context, m domain.Market) domain.Market {
	if !m.BannerResolved {
		raw, err := d.fetcher.GetMarket(ctx, m.ID)
		if err != nil {
			d.logger.Error("refetch for banner failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			return m
		}
		m = d.canon.ResolveBanner(m, raw)
		if err := d.markets.SetBanner(ctx, m.ID, m.BannerURL); err != nil {
			d.logger.Error("store banner failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			return m
		}
	}

	if m.BannerURL != nil || d.images == nil {
		return m
	}

	// Source had no usable image. Generation failure alerts the operators
	// and leaves the record where it is; a later pass retries.
	imageURL, err := d.images.Generate(ctx, m)
	if err != nil {
		d.logger.Error("image generation failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		d.notify(ctx, notify.EventImageGenFailed, "Image generation failed",
			fmt.Sprintf("%s (%s): %v", m.Question, m.ID, err))
		return m
	}
	if err := d.markets.SetBanner(ctx, m.ID, &imageURL); err != nil {
		d.logger.Error("store generated banner failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return m
	}
	m.BannerURL = &imageURL
	return m
}

func (d *Decisions) postStage(ctx context.Context, m domain.Market, stage domain.Stage) {
	if stage == domain.StageImage && m.BannerURL == nil {
		// Nothing to review yet; wait for a banner.
		return
	}

	handle, err := d.surf.Post(ctx, m, stage)
	if err != nil {
		d.logger.Error("review post failed",
			slog.String("market_id", m.ID),
			slog.Int("stage", int(stage)),
			slog.String("error", err.Error()))
		return
	}
	if err := d.markets.SetApprovalRef(ctx, m.ID, stage, handle); err != nil {
		d.logger.Error("store approval ref failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
	}
}

// runDeploy publishes every fully approved market. Deployment failure keeps
// the record approved so a later pass can retry.
func (d *Decisions) runDeploy(ctx context.Context) error {
	if d.deployer == nil {
		return nil
	}

	approved, err := d.markets.ListByState(ctx, domain.StateApproved, listLimit)
	if err != nil {
		return fmt.Errorf("pipeline: list approved markets: %w", err)
	}

	for _, m := range approved {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: deploy pass cancelled: %w", err)
		}

		externalID, err := d.deployer.Deploy(ctx, m)
		if err != nil {
			d.logger.Error("deploy failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			d.notify(ctx, notify.EventDeployFailed, "Deploy failed",
				fmt.Sprintf("%s (%s): %v", m.Question, m.ID, err))
			continue
		}

		if err := d.markets.SetExternalID(ctx, m.ID, externalID); err != nil {
			d.logger.Error("store external id failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			continue
		}
		if err := d.markets.Transition(ctx, m.ID, domain.StateApproved, domain.StateDeployed); err != nil {
			d.logger.Error("transition to deployed failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()))
			continue
		}

		d.logger.Info("market deployed",
			slog.String("market_id", m.ID),
			slog.String("external_id", externalID))
		d.notify(ctx, notify.EventMarketDeployed, "Market deployed",
			fmt.Sprintf("%s (%s) live as %s", m.Question, m.ID, externalID))
	}
	return nil
}

func (d *Decisions) notify(ctx context.Context, event, title, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, event, title, message); err != nil {
		d.logger.Error("notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}

// RunLoop runs the decisions pass on a repeating interval until the context
// is cancelled.
func (d *Decisions) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := d.Run(ctx); err != nil {
		d.logger.Error("decisions pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("decisions loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Run(ctx); err != nil {
				d.logger.Error("decisions pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
