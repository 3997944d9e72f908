// Package pipeline wires the fetch, curation, review, and deployment passes
// into repeating loops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/platform/polymarket"
	"github.com/apemarkets/curator/internal/surface"
)

// Fetcher retrieves raw markets from the upstream source. The raw response
// body is returned alongside the decoded page for archival.
type Fetcher interface {
	FetchActive(ctx context.Context, limit int) ([]polymarket.RawMarket, []byte, error)
	GetMarket(ctx context.Context, id string) (polymarket.RawMarket, error)
}

// Canonicalizer turns one raw market into its curated form.
type Canonicalizer interface {
	Canonicalize(raw polymarket.RawMarket) (domain.Market, error)
	ResolveBanner(m domain.Market, raw polymarket.RawMarket) domain.Market
}

// RawArchiver stores raw fetch payloads. Implementations return the blob key
// they wrote to.
type RawArchiver interface {
	ArchiveRawPage(ctx context.Context, payload []byte, fetchedAt time.Time) (string, error)
}

// ingestLockKey serialises the ingest pass across replicas.
const ingestLockKey = "ingest"

// Ingestor runs the fetch-and-curate pass: pull active raw markets, skip
// everything already ledgered, canonicalize the rest, and put new records in
// front of reviewers.
type Ingestor struct {
	fetcher    Fetcher
	canon      Canonicalizer
	markets    domain.MarketStore
	ledger     domain.LedgerStore
	seen       domain.SeenCache
	surf       surface.Surface
	archiver   RawArchiver
	locks      domain.LockManager
	fetchLimit int
	lockTTL    time.Duration
	logger     *slog.Logger
}

// NewIngestor creates an Ingestor. The seen cache, archiver, and lock
// manager are optional; passing nil disables that concern.
func NewIngestor(
	fetcher Fetcher,
	canon Canonicalizer,
	markets domain.MarketStore,
	ledger domain.LedgerStore,
	seen domain.SeenCache,
	surf surface.Surface,
	archiver RawArchiver,
	locks domain.LockManager,
	fetchLimit int,
	logger *slog.Logger,
) *Ingestor {
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	return &Ingestor{
		fetcher:    fetcher,
		canon:      canon,
		markets:    markets,
		ledger:     ledger,
		seen:       seen,
		surf:       surf,
		archiver:   archiver,
		locks:      locks,
		fetchLimit: fetchLimit,
		lockTTL:    5 * time.Minute,
		logger:     logger.With(slog.String("component", "ingest")),
	}
}

// Run executes a single ingest pass. One upstream record failing never stops
// the rest of the page.
func (in *Ingestor) Run(ctx context.Context) error {
	if in.locks != nil {
		unlock, err := in.locks.Acquire(ctx, ingestLockKey, in.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				in.logger.Debug("ingest pass already running elsewhere")
				return nil
			}
			return fmt.Errorf("pipeline: acquire ingest lock: %w", err)
		}
		defer unlock()
	}

	raws, payload, err := in.fetcher.FetchActive(ctx, in.fetchLimit)
	if err != nil {
		return fmt.Errorf("pipeline: fetch active markets: %w", err)
	}

	if in.archiver != nil {
		if _, err := in.archiver.ArchiveRawPage(ctx, payload, time.Now().UTC()); err != nil {
			in.logger.Error("raw page archive failed", slog.String("error", err.Error()))
		}
	}

	ingested := 0
	discarded := 0
	skipped := 0
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: ingest pass cancelled: %w", err)
		}

		switch in.ingestOne(ctx, raw) {
		case ingestCreated:
			ingested++
		case ingestDiscarded:
			discarded++
		default:
			skipped++
		}
	}

	in.logger.Info("ingest pass complete",
		slog.Int("fetched", len(raws)),
		slog.Int("ingested", ingested),
		slog.Int("discarded", discarded),
		slog.Int("skipped", skipped),
	)
	return nil
}

type ingestResult int

const (
	ingestSkipped ingestResult = iota
	ingestDiscarded
	ingestCreated
)

func (in *Ingestor) ingestOne(ctx context.Context, raw polymarket.RawMarket) ingestResult {
	upstreamID := raw.UpstreamID()
	if upstreamID == "" {
		in.logger.Warn("raw market has no usable id, dropping")
		return ingestSkipped
	}

	// Cheap pre-filter: a recent cache hit means the ledger already has it.
	if in.seen != nil {
		if hit, err := in.seen.Seen(ctx, upstreamID); err == nil && hit {
			return ingestSkipped
		}
	}

	known, err := in.ledger.Contains(ctx, upstreamID)
	if err != nil {
		in.logger.Error("ledger lookup failed",
			slog.String("upstream_id", upstreamID),
			slog.String("error", err.Error()))
		return ingestSkipped
	}
	if known {
		in.markSeen(ctx, upstreamID)
		return ingestSkipped
	}

	// Discards are never ledgered, so a record that later becomes valid
	// upstream still gets its chance on a future pass.
	m, err := in.canon.Canonicalize(raw)
	if err != nil {
		if errors.Is(err, domain.ErrDiscarded) {
			in.logger.Debug("raw market discarded",
				slog.String("upstream_id", upstreamID),
				slog.String("reason", err.Error()))
			return ingestDiscarded
		}
		in.logger.Error("canonicalize failed",
			slog.String("upstream_id", upstreamID),
			slog.String("error", err.Error()))
		return ingestSkipped
	}

	// The ledger insert is the idempotency gate: exactly one concurrent
	// pass wins the right to create the record.
	inserted, err := in.ledger.InsertIfAbsent(ctx, upstreamID)
	if err != nil {
		in.logger.Error("ledger insert failed",
			slog.String("upstream_id", upstreamID),
			slog.String("error", err.Error()))
		return ingestSkipped
	}
	in.markSeen(ctx, upstreamID)
	if !inserted {
		return ingestSkipped
	}

	if err := in.markets.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			in.logger.Warn("market row already present",
				slog.String("market_id", m.ID))
			return ingestSkipped
		}
		in.logger.Error("market create failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return ingestSkipped
	}

	in.logger.Info("ingested market",
		slog.String("market_id", m.ID),
		slog.String("kind", string(m.Kind)),
		slog.String("question", m.Question))

	// Post the first review message. Failure is not fatal: the decisions
	// pass reposts for pending records without a handle.
	handle, err := in.surf.Post(ctx, m, domain.StageMarket)
	if err != nil {
		in.logger.Error("review post failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
		return ingestCreated
	}
	if err := in.markets.SetApprovalRef(ctx, m.ID, domain.StageMarket, handle); err != nil {
		in.logger.Error("store approval ref failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()))
	}
	return ingestCreated
}

func (in *Ingestor) markSeen(ctx context.Context, upstreamID string) {
	if in.seen == nil {
		return
	}
	if err := in.seen.MarkSeen(ctx, upstreamID); err != nil {
		in.logger.Debug("seen cache mark failed",
			slog.String("upstream_id", upstreamID),
			slog.String("error", err.Error()))
	}
}

// RunLoop runs the ingest pass on a repeating interval until the context is
// cancelled.
func (in *Ingestor) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := in.Run(ctx); err != nil {
		in.logger.Error("ingest pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingest loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := in.Run(ctx); err != nil {
				in.logger.Error("ingest pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
