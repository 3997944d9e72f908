package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

// fakeMarketStore is an in-memory domain.MarketStore sufficient for service
// tests: conditional transitions behave like the SQL implementation.
type fakeMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: make(map[string]domain.Market)}
}

func (s *fakeMarketStore) Create(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.ID] = m
	return nil
}

func (s *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) ListByState(_ context.Context, state domain.LifecycleState, limit int) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.State == state {
			out = append(out, m)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeMarketStore) Transition(_ context.Context, id string, from, to domain.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.State != from {
		return fmt.Errorf("market %s is %s not %s: %w", id, m.State, from, domain.ErrStaleState)
	}
	m.State = to
	s.markets[id] = m
	return nil
}

func (s *fakeMarketStore) SetCategory(_ context.Context, id, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.markets[id]
	m.Category = &category
	s.markets[id] = m
	return nil
}

func (s *fakeMarketStore) SetBanner(_ context.Context, id string, bannerURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.markets[id]
	m.BannerURL = bannerURL
	m.BannerResolved = true
	s.markets[id] = m
	return nil
}

func (s *fakeMarketStore) SetApprovalRef(_ context.Context, id string, stage domain.Stage, ref domain.ApprovalHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.markets[id]
	if stage == domain.StageMarket {
		m.ApprovalRef = &ref
	} else {
		m.ImageApprovalRef = &ref
	}
	s.markets[id] = m
	return nil
}

func (s *fakeMarketStore) SetExternalID(_ context.Context, id, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.markets[id]
	m.ExternalID = &externalID
	s.markets[id] = m
	return nil
}

type fakeApprovalLog struct {
	mu     sync.Mutex
	events []domain.ApprovalEvent
}

func (l *fakeApprovalLog) Append(_ context.Context, ev domain.ApprovalEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *fakeApprovalLog) ListByMarket(_ context.Context, marketID string) ([]domain.ApprovalEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.ApprovalEvent
	for _, ev := range l.events {
		if ev.MarketID == marketID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func pendingMarket(id string, postedAt time.Time) domain.Market {
	return domain.Market{
		ID:       id,
		Kind:     domain.KindBinary,
		Question: "Will it happen?",
		State:    domain.StatePending,
		ApprovalRef: &domain.ApprovalHandle{
			Channel:   "C123",
			MessageTS: "1700000000.000100",
			PostedAt:  postedAt,
		},
	}
}

func TestApplyRecordsAuditEvent(t *testing.T) {
	ctx := context.Background()
	store := newFakeMarketStore()
	log := &fakeApprovalLog{}
	svc := NewService(store, log, slog.Default())

	m := pendingMarket("m1", time.Now())
	if err := store.Create(ctx, m); err != nil {
		t.Fatal(err)
	}

	next, err := svc.Apply(ctx, m, domain.StageMarket, domain.SurfaceDecision{
		Decision: domain.DecisionApprove,
		Actor:    "U42",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next != domain.StatePendingImage {
		t.Errorf("next = %s, want pending_image", next)
	}

	events, _ := log.ListByMarket(ctx, "m1")
	if len(events) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(events))
	}
	if events[0].Decision != domain.DecisionApprove || events[0].Stage != domain.StageMarket || events[0].Actor != "U42" {
		t.Errorf("unexpected audit row %+v", events[0])
	}
}

func TestApplyDuplicateDecisionIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newFakeMarketStore()
	log := &fakeApprovalLog{}
	svc := NewService(store, log, slog.Default())

	m := pendingMarket("m1", time.Now())
	m.State = domain.StateDeployed
	if err := store.Create(ctx, m); err != nil {
		t.Fatal(err)
	}

	next, err := svc.Apply(ctx, m, domain.StageImage, domain.SurfaceDecision{Decision: domain.DecisionApprove})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next != domain.StateDeployed {
		t.Errorf("next = %s, want deployed unchanged", next)
	}
	if events, _ := log.ListByMarket(ctx, "m1"); len(events) != 0 {
		t.Errorf("audit rows = %d, want 0 for stale decision", len(events))
	}
}

func TestApplyLostRaceIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newFakeMarketStore()
	log := &fakeApprovalLog{}
	svc := NewService(store, log, slog.Default())

	m := pendingMarket("m1", time.Now())
	if err := store.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	// A concurrent pass already advanced the stored state; our copy is stale.
	if err := store.Transition(ctx, "m1", domain.StatePending, domain.StateRejected); err != nil {
		t.Fatal(err)
	}

	next, err := svc.Apply(ctx, m, domain.StageMarket, domain.SurfaceDecision{Decision: domain.DecisionApprove})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if next != domain.StatePending {
		t.Errorf("next = %s, want caller's stale view unchanged", next)
	}

	stored, _ := store.GetByID(ctx, "m1")
	if stored.State != domain.StateRejected {
		t.Errorf("stored state = %s, want rejected untouched", stored.State)
	}
	if events, _ := log.ListByMarket(ctx, "m1"); len(events) != 0 {
		t.Errorf("audit rows = %d, want 0 when the race was lost", len(events))
	}
}

func TestSweepTimeouts(t *testing.T) {
	ctx := context.Background()
	store := newFakeMarketStore()
	log := &fakeApprovalLog{}
	svc := NewService(store, log, slog.Default())

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	horizon := 7 * 24 * time.Hour

	stale := pendingMarket("old", now.Add(-8*24*time.Hour))
	fresh := pendingMarket("new", now.Add(-2*24*time.Hour))
	unposted := domain.Market{ID: "unposted", State: domain.StatePending}

	staleImage := pendingMarket("old-image", now)
	staleImage.State = domain.StatePendingImage
	staleImage.ImageApprovalRef = &domain.ApprovalHandle{
		Channel:   "C123",
		MessageTS: "1700000001.000100",
		PostedAt:  now.Add(-9 * 24 * time.Hour),
	}

	for _, m := range []domain.Market{stale, fresh, unposted, staleImage} {
		if err := store.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	swept, err := svc.SweepTimeouts(ctx, horizon, now)
	if err != nil {
		t.Fatalf("SweepTimeouts() error = %v", err)
	}
	if swept != 2 {
		t.Errorf("swept = %d, want 2", swept)
	}

	for _, tc := range []struct {
		id   string
		want domain.LifecycleState
	}{
		{"old", domain.StateTimedOut},
		{"new", domain.StatePending},
		{"unposted", domain.StatePending},
		{"old-image", domain.StateTimedOut},
	} {
		m, _ := store.GetByID(ctx, tc.id)
		if m.State != tc.want {
			t.Errorf("market %s state = %s, want %s", tc.id, m.State, tc.want)
		}
	}

	events, _ := log.ListByMarket(ctx, "old")
	if len(events) != 1 || events[0].Decision != domain.DecisionTimeout {
		t.Errorf("timeout audit row missing for old: %+v", events)
	}
}
