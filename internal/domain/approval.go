package domain

import "time"

// Stage identifies which of the two review stages a decision applies to.
type Stage int

const (
	// StageMarket is the initial market-content review.
	StageMarket Stage = 1
	// StageImage is the banner-image review that follows stage-1 approval.
	StageImage Stage = 2
)

// Decision is the outcome of one review stage.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionTimeout Decision = "timeout"
)

// ApprovalEvent is one row of the append-only approval audit log. A market
// accumulates one event per transition across its two review stages.
type ApprovalEvent struct {
	ID        string
	MarketID  string
	Stage     Stage
	Decision  Decision
	Actor     string
	CreatedAt time.Time
}

// SurfaceDecision is a raw decision signal polled from the approval surface,
// before it has been applied to a market. The surface may deliver duplicates
// and out-of-order signals; the approval service must tolerate both.
type SurfaceDecision struct {
	Decision  Decision
	Actor     string
	Timestamp time.Time
}
