package domain

import "time"

// MarketKind distinguishes the two upstream shapes a market can arrive in.
type MarketKind string

const (
	// KindBinary is a standalone Yes/No market.
	KindBinary MarketKind = "binary"
	// KindEvent is a multi-option market assembled from an upstream event
	// container and its child outcome markets.
	KindEvent MarketKind = "event"
)

// LifecycleState is the approval-workflow state of a canonical market.
type LifecycleState string

const (
	StatePending      LifecycleState = "pending"
	StatePendingImage LifecycleState = "pending_image"
	StateApproved     LifecycleState = "approved"
	StateRejected     LifecycleState = "rejected"
	StateDeployed     LifecycleState = "deployed"
	StateTimedOut     LifecycleState = "timed_out"
)

// Terminal reports whether no further transitions are allowed from s.
func (s LifecycleState) Terminal() bool {
	switch s {
	case StateRejected, StateDeployed, StateTimedOut:
		return true
	}
	return false
}

// Option is one outcome of a canonical market. For event markets the options
// have been entity-deduplicated; binary markets always carry exactly the two
// Yes/No options and never carry icons.
type Option struct {
	DisplayName    string
	IconURL        *string
	SourceMarketID string
}

// ApprovalHandle is an opaque reference to the human-approval surface post
// for one review stage. For Slack this is a channel plus the message
// timestamp that uniquely identifies the posted message.
type ApprovalHandle struct {
	Channel   string    `json:"channel"`
	MessageTS string    `json:"message_ts"`
	PostedAt  time.Time `json:"posted_at"`
}

// Market is the canonical, pipeline-internal representation of a prediction
// market regardless of whether it arrived as a standalone binary market or as
// an event with child outcome markets. Everything downstream of the
// canonicalizer operates on this type only.
type Market struct {
	ID           string
	Kind         MarketKind
	Question     string
	Category     *string
	BannerURL    *string
	EventIconURL *string
	Options      []Option
	Expiry       *time.Time
	State        LifecycleState

	// BannerResolved marks that banner resolution already ran for this
	// record; the resolver treats a cached banner as authoritative so
	// repeated passes over the same raw input are idempotent.
	BannerResolved bool

	ApprovalRef      *ApprovalHandle
	ImageApprovalRef *ApprovalHandle

	// ExternalID is the identifier returned by the deployment target. Once
	// set it is never cleared and the market is never re-submitted.
	ExternalID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerEntry records one upstream id that has been ingested. Entries are
// written once and never updated or deleted; their presence alone prevents a
// raw record from being processed twice across fetch cycles.
type LedgerEntry struct {
	UpstreamID  string
	FirstSeenAt time.Time
}

// StrPtr returns a pointer to s, or nil if s is empty. Canonicalization deals
// in nullable URL and category fields, so this shows up everywhere.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
