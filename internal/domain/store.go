package domain

import (
	"context"
	"io"
	"time"
)

// MarketStore persists canonical markets and their lifecycle state.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	// ListByState returns markets currently in the given state, oldest first.
	ListByState(ctx context.Context, state LifecycleState, limit int) ([]Market, error)

	// Transition atomically moves the market from the expected state to the
	// new state. It returns ErrStaleState when the stored state no longer
	// matches from, so a concurrent pass that lost the race can treat its
	// own transition as a no-op instead of overwriting.
	Transition(ctx context.Context, id string, from, to LifecycleState) error

	SetCategory(ctx context.Context, id, category string) error
	SetBanner(ctx context.Context, id string, bannerURL *string) error
	SetApprovalRef(ctx context.Context, id string, stage Stage, ref ApprovalHandle) error
	SetExternalID(ctx context.Context, id, externalID string) error
}

// LedgerStore is the durable idempotency ledger of upstream ids.
type LedgerStore interface {
	// InsertIfAbsent records the upstream id and reports whether this call
	// created the entry. A false return means the id was already ingested
	// and the raw record must be skipped. The insert must be atomic so two
	// concurrent fetch passes produce exactly one canonical market.
	InsertIfAbsent(ctx context.Context, upstreamID string) (bool, error)
	Contains(ctx context.Context, upstreamID string) (bool, error)
}

// ApprovalLogStore persists the append-only approval audit log.
type ApprovalLogStore interface {
	Append(ctx context.Context, ev ApprovalEvent) error
	ListByMarket(ctx context.Context, marketID string) ([]ApprovalEvent, error)
}

// LockManager provides distributed locks so overlapping scheduled passes do
// not process the same work twice on different hosts.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when
	// the lock is taken by another holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SeenCache is a fast, lossy pre-filter in front of the ledger. A hit means
// the upstream id was ingested recently; a miss proves nothing and callers
// must still consult the LedgerStore.
type SeenCache interface {
	Seen(ctx context.Context, upstreamID string) (bool, error)
	MarkSeen(ctx context.Context, upstreamID string) error
}

// BlobWriter stores raw upstream payloads for audit and replay.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
