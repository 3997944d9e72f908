package postgres

import (
	"testing"

	"github.com/google/uuid"

	"github.com/apemarkets/curator/internal/domain"
)

func TestEventIDKeepsCallerValue(t *testing.T) {
	ev := domain.ApprovalEvent{ID: "evt-42", MarketID: "m1"}
	if got := eventID(ev); got != "evt-42" {
		t.Errorf("eventID() = %q, want evt-42", got)
	}
}

func TestEventIDGeneratesWhenBlank(t *testing.T) {
	ev := domain.ApprovalEvent{MarketID: "m1"}
	got := eventID(ev)
	if got == "" {
		t.Fatal("eventID() returned empty id")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("eventID() = %q, not a valid uuid: %v", got, err)
	}
}
