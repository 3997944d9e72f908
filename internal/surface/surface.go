// Package surface defines the contract between the approval workflow and the
// human-approval surface it posts to. The state machine never talks to the
// surface directly; it only consumes decision events keyed by the opaque
// handle a Post call returned.
package surface

import (
	"context"

	"github.com/apemarkets/curator/internal/domain"
)

// Surface is a channel where humans review markets by reacting to posts.
type Surface interface {
	// Post makes the market visible for the given review stage and returns
	// the handle that later decisions are keyed by.
	Post(ctx context.Context, m domain.Market, stage domain.Stage) (domain.ApprovalHandle, error)

	// PollDecisions returns the decision signals currently attached to the
	// handle. It may return zero or more signals, including duplicates and
	// out-of-order deliveries; callers must tolerate both.
	PollDecisions(ctx context.Context, handle domain.ApprovalHandle) ([]domain.SurfaceDecision, error)
}

// Resolve collapses polled decision signals into at most one effective
// decision. A single rejection wins over any number of approvals, matching
// how reviewers expect a veto to behave; with no signals present ok is false.
func Resolve(signals []domain.SurfaceDecision) (domain.SurfaceDecision, bool) {
	var approve *domain.SurfaceDecision
	for i := range signals {
		switch signals[i].Decision {
		case domain.DecisionReject:
			return signals[i], true
		case domain.DecisionApprove:
			if approve == nil {
				approve = &signals[i]
			}
		}
	}
	if approve != nil {
		return *approve, true
	}
	return domain.SurfaceDecision{}, false
}
