package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

func TestMapReaction(t *testing.T) {
	tests := []struct {
		name   string
		want   domain.Decision
		wantOK bool
	}{
		{"white_check_mark", domain.DecisionApprove, true},
		{"+1", domain.DecisionApprove, true},
		{"thumbsup", domain.DecisionApprove, true},
		{"x", domain.DecisionReject, true},
		{"-1", domain.DecisionReject, true},
		{"thumbsdown", domain.DecisionReject, true},
		{"eyes", "", false},
		{"fire", "", false},
	}
	for _, tt := range tests {
		got, ok := mapReaction(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("mapReaction(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatMessageStageOneListsOptions(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := domain.Market{
		ID:       "m1",
		Kind:     domain.KindEvent,
		Question: "La Liga Winner 2026",
		Category: domain.StrPtr("sports"),
		Expiry:   &expiry,
		Options: []domain.Option{
			{DisplayName: "Real Madrid"},
			{DisplayName: "Barcelona"},
		},
	}

	text := formatMessage(m, domain.StageMarket)
	for _, want := range []string{"Market review", "La Liga Winner 2026", "`sports`", "Real Madrid", "Barcelona", ":white_check_mark:"} {
		if !strings.Contains(text, want) {
			t.Errorf("stage one message missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Banner:") {
		t.Errorf("stage one message should not include a banner line:\n%s", text)
	}
}

func TestFormatMessageWithoutExpiry(t *testing.T) {
	m := domain.Market{
		ID:       "m1",
		Kind:     domain.KindBinary,
		Question: "Will it rain tomorrow?",
	}

	text := formatMessage(m, domain.StageMarket)
	if strings.Contains(text, "Expires:") {
		t.Errorf("message for market without expiry should omit the expiry line:\n%s", text)
	}
}

func TestFormatMessageStageTwoShowsBanner(t *testing.T) {
	m := domain.Market{
		ID:        "m1",
		Kind:      domain.KindBinary,
		Question:  "Will it rain tomorrow?",
		BannerURL: domain.StrPtr("https://img.example.com/banner.png"),
	}

	text := formatMessage(m, domain.StageImage)
	if !strings.Contains(text, "Image review") {
		t.Errorf("stage two message missing header:\n%s", text)
	}
	if !strings.Contains(text, "https://img.example.com/banner.png") {
		t.Errorf("stage two message missing banner url:\n%s", text)
	}
}
