// Package approval implements the staged human-approval workflow: a pure
// state machine over lifecycle states plus a service that applies surface
// decisions atomically against the market store and records every transition
// in the append-only audit log.
package approval

import (
	"fmt"

	"github.com/apemarkets/curator/internal/domain"
)

// Next computes the state a market moves to when a decision arrives for the
// given stage. It is a pure function so the transition table can be tested
// without any store or approval surface.
//
// The table:
//
//	pending       --(stage-1 approve)--> pending_image
//	pending       --(stage-1 reject)---> rejected
//	pending       --(stage-1 timeout)--> timed_out
//	pending_image --(stage-2 approve)--> approved
//	pending_image --(stage-2 reject)---> rejected
//	pending_image --(stage-2 timeout)--> timed_out
//
// Decisions against terminal states, or against the wrong stage for the
// current state, return domain.ErrStaleState; the caller logs these as
// no-ops because duplicate and late decision events are expected.
func Next(current domain.LifecycleState, stage domain.Stage, decision domain.Decision) (domain.LifecycleState, error) {
	if current.Terminal() {
		return current, fmt.Errorf("market is %s: %w", current, domain.ErrStaleState)
	}

	switch {
	case current == domain.StatePending && stage == domain.StageMarket:
		return decide(decision, domain.StatePendingImage)
	case current == domain.StatePendingImage && stage == domain.StageImage:
		return decide(decision, domain.StateApproved)
	case current == domain.StateApproved:
		// Approved markets are waiting on deployment, not on a decision.
		return current, fmt.Errorf("market awaiting deployment: %w", domain.ErrStaleState)
	default:
		return current, fmt.Errorf("stage %d decision against state %s: %w", stage, current, domain.ErrStaleState)
	}
}

func decide(decision domain.Decision, onApprove domain.LifecycleState) (domain.LifecycleState, error) {
	switch decision {
	case domain.DecisionApprove:
		return onApprove, nil
	case domain.DecisionReject:
		return domain.StateRejected, nil
	case domain.DecisionTimeout:
		return domain.StateTimedOut, nil
	default:
		return "", fmt.Errorf("unknown decision %q", decision)
	}
}

// StageFor returns which review stage a decision in the given state belongs
// to, and false for states that take no decisions.
func StageFor(state domain.LifecycleState) (domain.Stage, bool) {
	switch state {
	case domain.StatePending:
		return domain.StageMarket, true
	case domain.StatePendingImage:
		return domain.StageImage, true
	}
	return 0, false
}
