package approval

import (
	"errors"
	"testing"

	"github.com/apemarkets/curator/internal/domain"
)

func TestNextTransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		current  domain.LifecycleState
		stage    domain.Stage
		decision domain.Decision
		want     domain.LifecycleState
		stale    bool
	}{
		{"stage-1 approve", domain.StatePending, domain.StageMarket, domain.DecisionApprove, domain.StatePendingImage, false},
		{"stage-1 reject", domain.StatePending, domain.StageMarket, domain.DecisionReject, domain.StateRejected, false},
		{"stage-1 timeout", domain.StatePending, domain.StageMarket, domain.DecisionTimeout, domain.StateTimedOut, false},
		{"stage-2 approve", domain.StatePendingImage, domain.StageImage, domain.DecisionApprove, domain.StateApproved, false},
		{"stage-2 reject", domain.StatePendingImage, domain.StageImage, domain.DecisionReject, domain.StateRejected, false},
		{"stage-2 timeout", domain.StatePendingImage, domain.StageImage, domain.DecisionTimeout, domain.StateTimedOut, false},
		{"stage-2 decision against pending", domain.StatePending, domain.StageImage, domain.DecisionApprove, "", true},
		{"stage-1 decision against pending_image", domain.StatePendingImage, domain.StageMarket, domain.DecisionApprove, "", true},
		{"decision against approved", domain.StateApproved, domain.StageImage, domain.DecisionApprove, "", true},
		{"decision against rejected", domain.StateRejected, domain.StageMarket, domain.DecisionApprove, "", true},
		{"decision against deployed", domain.StateDeployed, domain.StageImage, domain.DecisionReject, "", true},
		{"decision against timed_out", domain.StateTimedOut, domain.StageMarket, domain.DecisionReject, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.current, tt.stage, tt.decision)
			if tt.stale {
				if !errors.Is(err, domain.ErrStaleState) {
					t.Fatalf("Next() error = %v, want ErrStaleState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNoPathOutOfTerminalStates(t *testing.T) {
	terminals := []domain.LifecycleState{domain.StateRejected, domain.StateDeployed, domain.StateTimedOut}
	stages := []domain.Stage{domain.StageMarket, domain.StageImage}
	decisions := []domain.Decision{domain.DecisionApprove, domain.DecisionReject, domain.DecisionTimeout}

	for _, state := range terminals {
		for _, stage := range stages {
			for _, decision := range decisions {
				got, err := Next(state, stage, decision)
				if !errors.Is(err, domain.ErrStaleState) {
					t.Errorf("Next(%s, %d, %s) error = %v, want ErrStaleState", state, stage, decision, err)
				}
				if got != state {
					t.Errorf("Next(%s, %d, %s) moved terminal state to %s", state, stage, decision, got)
				}
			}
		}
	}
}

func TestStageFor(t *testing.T) {
	if s, ok := StageFor(domain.StatePending); !ok || s != domain.StageMarket {
		t.Errorf("StageFor(pending) = %d, %v", s, ok)
	}
	if s, ok := StageFor(domain.StatePendingImage); !ok || s != domain.StageImage {
		t.Errorf("StageFor(pending_image) = %d, %v", s, ok)
	}
	for _, state := range []domain.LifecycleState{domain.StateApproved, domain.StateRejected, domain.StateDeployed, domain.StateTimedOut} {
		if _, ok := StageFor(state); ok {
			t.Errorf("StageFor(%s) = true, want false", state)
		}
	}
}
