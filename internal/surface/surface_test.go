package surface

import (
	"testing"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

func sig(d domain.Decision, actor string) domain.SurfaceDecision {
	return domain.SurfaceDecision{Decision: d, Actor: actor, Timestamp: time.Now()}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		signals []domain.SurfaceDecision
		want    domain.Decision
		wantOK  bool
	}{
		{
			name:   "no signals",
			wantOK: false,
		},
		{
			name:    "single approval",
			signals: []domain.SurfaceDecision{sig(domain.DecisionApprove, "U1")},
			want:    domain.DecisionApprove,
			wantOK:  true,
		},
		{
			name:    "single rejection",
			signals: []domain.SurfaceDecision{sig(domain.DecisionReject, "U1")},
			want:    domain.DecisionReject,
			wantOK:  true,
		},
		{
			name: "rejection wins over approvals",
			signals: []domain.SurfaceDecision{
				sig(domain.DecisionApprove, "U1"),
				sig(domain.DecisionApprove, "U2"),
				sig(domain.DecisionReject, "U3"),
			},
			want:   domain.DecisionReject,
			wantOK: true,
		},
		{
			name: "rejection wins regardless of order",
			signals: []domain.SurfaceDecision{
				sig(domain.DecisionReject, "U1"),
				sig(domain.DecisionApprove, "U2"),
			},
			want:   domain.DecisionReject,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.signals)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Decision != tt.want {
				t.Errorf("Resolve() decision = %s, want %s", got.Decision, tt.want)
			}
		})
	}
}
