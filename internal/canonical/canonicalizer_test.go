package canonical

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/platform/polymarket"
)

func testCanonicalizer() *Canonicalizer {
	c := New(nil, slog.Default())
	c.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func boolPtr(b bool) *bool { return &b }

func binaryRaw() polymarket.RawMarket {
	return polymarket.RawMarket{
		ID:       "101",
		Question: "Will BTC close above $200k in 2026?",
		Outcomes: `["Yes","No"]`,
		Image:    "https://images.example.com/btc.png",
		Icon:     "https://images.example.com/btc-icon.png",
	}
}

func eventRaw() polymarket.RawMarket {
	return polymarket.RawMarket{
		ID:       "202",
		Question: "Will Arsenal win the Premier League?",
		Outcomes: `["Yes","No"]`,
		Image:    "https://images.example.com/parent.png",
		Events: []polymarket.RawEvent{
			{
				ID:     "ev-1",
				Title:  "Premier League Winner 2026-27",
				Image:  "https://images.example.com/epl.png",
				Icon:   "https://images.example.com/epl-icon.png",
				Active: true,
				Outcomes: []polymarket.RawOutcome{
					{ID: "opt-arsenal", Name: "Arsenal", Icon: "https://images.example.com/arsenal.png"},
					{ID: "opt-city", Name: "Manchester City", Icon: "https://images.example.com/city.png"},
					{ID: "opt-liv", Name: "Liverpool"},
				},
			},
		},
		MultipleChoice: boolPtr(true),
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name    string
		raw     polymarket.RawMarket
		want    domain.MarketKind
		discard bool
	}{
		{
			name: "explicit flag wins over yes/no outcomes",
			raw: polymarket.RawMarket{
				ID:             "1",
				Outcomes:       `["Yes","No"]`,
				MultipleChoice: boolPtr(true),
			},
			want: domain.KindEvent,
		},
		{
			name: "explicit flag false forces binary",
			raw: polymarket.RawMarket{
				ID:             "2",
				Outcomes:       `["A","B","C"]`,
				MultipleChoice: boolPtr(false),
			},
			want: domain.KindBinary,
		},
		{
			name: "yes/no outcomes mean binary",
			raw:  polymarket.RawMarket{ID: "3", Outcomes: `["Yes","No"]`},
			want: domain.KindBinary,
		},
		{
			name: "yes/no is case and order insensitive",
			raw:  polymarket.RawMarket{ID: "4", Outcomes: `["NO","yes"]`},
			want: domain.KindBinary,
		},
		{
			name: "event children imply event",
			raw: polymarket.RawMarket{
				ID:     "5",
				Events: []polymarket.RawEvent{{ID: "ev", Active: true}},
			},
			want: domain.KindEvent,
		},
		{
			name: "legacy event flag implies event",
			raw:  polymarket.RawMarket{ID: "6", IsEvent: boolPtr(true)},
			want: domain.KindEvent,
		},
		{
			name:    "nothing recognizable is discarded",
			raw:     polymarket.RawMarket{ID: "7", Outcomes: `["Maybe"]`},
			discard: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := detectKind(tt.raw)
			if tt.discard {
				if !errors.Is(err, domain.ErrDiscarded) {
					t.Fatalf("detectKind() error = %v, want ErrDiscarded", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("detectKind() error = %v", err)
			}
			if kind != tt.want {
				t.Errorf("detectKind() = %s, want %s", kind, tt.want)
			}
		})
	}
}

func TestCanonicalizeBinary(t *testing.T) {
	c := testCanonicalizer()

	m, err := c.Canonicalize(binaryRaw())
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}

	if m.Kind != domain.KindBinary {
		t.Fatalf("Kind = %s, want binary", m.Kind)
	}
	if len(m.Options) != 2 {
		t.Fatalf("len(Options) = %d, want 2", len(m.Options))
	}
	for _, opt := range m.Options {
		if opt.IconURL != nil {
			t.Errorf("binary option %q carries icon %q, want none", opt.DisplayName, *opt.IconURL)
		}
	}
	if m.BannerURL == nil || *m.BannerURL != "https://images.example.com/btc.png" {
		t.Errorf("BannerURL = %v, want market-level image", m.BannerURL)
	}
	if m.EventIconURL != nil {
		t.Errorf("EventIconURL = %q, want nil for binary", *m.EventIconURL)
	}
	if !m.BannerResolved {
		t.Error("BannerResolved = false, want true")
	}
	if m.State != domain.StatePending {
		t.Errorf("State = %s, want pending", m.State)
	}
}

func TestCanonicalizeEventBannerComesFromContainer(t *testing.T) {
	c := testCanonicalizer()

	raw := eventRaw()
	m, err := c.Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}

	// The parent record's own image must never win over the container's.
	if m.BannerURL == nil || *m.BannerURL != "https://images.example.com/epl.png" {
		t.Errorf("BannerURL = %v, want first container image", m.BannerURL)
	}
	if m.EventIconURL == nil || *m.EventIconURL != "https://images.example.com/epl-icon.png" {
		t.Errorf("EventIconURL = %v, want first container icon", m.EventIconURL)
	}
	if m.Question != "Premier League Winner 2026-27" {
		t.Errorf("Question = %q, want container title", m.Question)
	}
}

func TestCanonicalizeEventFiltersDeadChildren(t *testing.T) {
	c := testCanonicalizer()

	raw := eventRaw()
	raw.Events[0].Outcomes = []polymarket.RawOutcome{
		{ID: "opt-a", Name: "Arsenal"},
		{ID: "opt-b", Name: "Manchester City"},
		{ID: "opt-c", Name: "Chelsea", Closed: true},
	}

	m, err := c.Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if len(m.Options) != 2 {
		t.Fatalf("len(Options) = %d, want 2 after filtering", len(m.Options))
	}
	for _, opt := range m.Options {
		if opt.DisplayName == "Chelsea" {
			t.Error("closed option survived filtering")
		}
	}
}

func TestCanonicalizeEventNeedsTwoLiveOptions(t *testing.T) {
	c := testCanonicalizer()

	raw := eventRaw()
	raw.Events[0].Outcomes = raw.Events[0].Outcomes[:1]

	_, err := c.Canonicalize(raw)
	if !errors.Is(err, domain.ErrDiscarded) {
		t.Fatalf("Canonicalize() error = %v, want ErrDiscarded", err)
	}
}

func TestCanonicalizeDiscardsClosedAndExpired(t *testing.T) {
	c := testCanonicalizer()

	tests := []struct {
		name   string
		mutate func(*polymarket.RawMarket)
	}{
		{"closed market", func(r *polymarket.RawMarket) { r.Closed = true }},
		{"archived market", func(r *polymarket.RawMarket) { r.Archived = true }},
		{"expired market", func(r *polymarket.RawMarket) {
			r.EndDate = "2026-01-01T00:00:00Z"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := binaryRaw()
			tt.mutate(&raw)
			_, err := c.Canonicalize(raw)
			if !errors.Is(err, domain.ErrDiscarded) {
				t.Fatalf("Canonicalize() error = %v, want ErrDiscarded", err)
			}
		})
	}
}

func TestCanonicalizeEventDeadContainerDiscarded(t *testing.T) {
	c := testCanonicalizer()

	raw := eventRaw()
	raw.Events[0].Closed = true

	_, err := c.Canonicalize(raw)
	if !errors.Is(err, domain.ErrDiscarded) {
		t.Fatalf("Canonicalize() error = %v, want ErrDiscarded", err)
	}
}

func TestCanonicalizeIsRepeatable(t *testing.T) {
	c := testCanonicalizer()

	raw := eventRaw()
	first, err := c.Canonicalize(raw)
	if err != nil {
		t.Fatalf("first Canonicalize() error = %v", err)
	}
	second, err := c.Canonicalize(raw)
	if err != nil {
		t.Fatalf("second Canonicalize() error = %v", err)
	}

	if len(first.Options) != len(second.Options) {
		t.Fatalf("option counts differ: %d vs %d", len(first.Options), len(second.Options))
	}
	for i := range first.Options {
		if first.Options[i] != second.Options[i] {
			t.Errorf("option %d differs between runs", i)
		}
	}
}

func TestRawMarketExpiry(t *testing.T) {
	ms := polymarket.RawMarket{EndDate: "1767225600000"} // 2026-01-01 UTC in millis
	if got := ms.Expiry(); got == nil || got.Year() != 2026 {
		t.Errorf("Expiry(millis) = %v, want 2026", got)
	}
	rfc := polymarket.RawMarket{EndDate: "2026-06-01T00:00:00Z"}
	if got := rfc.Expiry(); got == nil || got.Month() != time.June {
		t.Errorf("Expiry(rfc3339) = %v, want June 2026", got)
	}
	if got := (polymarket.RawMarket{}).Expiry(); got != nil {
		t.Errorf("Expiry(empty) = %v, want nil", got)
	}
}
