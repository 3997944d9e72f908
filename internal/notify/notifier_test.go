package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type captureSender struct {
	name   string
	titles []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func TestNotifyHonorsEventFilter(t *testing.T) {
	ctx := context.Background()
	sink := &captureSender{name: "chat"}
	n := NewNotifier([]Sender{sink}, []string{EventDeployFailed}, slog.Default())

	if err := n.Notify(ctx, EventSweepCompleted, "Sweep", "3 markets"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sink.titles) != 0 {
		t.Errorf("filtered event was delivered: %v", sink.titles)
	}

	if err := n.Notify(ctx, EventDeployFailed, "Deploy failed", "m1"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sink.titles) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sink.titles))
	}
}

func TestNotifyFramesFailureTitles(t *testing.T) {
	ctx := context.Background()
	sink := &captureSender{name: "chat"}
	n := NewNotifier([]Sender{sink}, nil, slog.Default())

	if err := n.Notify(ctx, EventImageGenFailed, "Image generation failed", "m1"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := n.Notify(ctx, EventMarketRejected, "Market rejected", "m2"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(sink.titles) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(sink.titles))
	}
	if !strings.HasPrefix(sink.titles[0], "⚠️ ") {
		t.Errorf("failure title = %q, want warning prefix", sink.titles[0])
	}
	if sink.titles[1] != "Market rejected" {
		t.Errorf("plain title = %q, want unframed", sink.titles[1])
	}
}

func TestDispatchCollectsSenderFailures(t *testing.T) {
	ctx := context.Background()
	broken := &captureSender{name: "broken", err: errors.New("webhook gone")}
	working := &captureSender{name: "working"}
	n := NewNotifier([]Sender{broken, working}, nil, slog.Default())

	err := n.NotifyAll(ctx, "Deployed", "m1")
	if err == nil {
		t.Fatal("NotifyAll() error = nil, want combined sender failure")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not name the failing sender", err)
	}
	if len(working.titles) != 1 {
		t.Errorf("working sender deliveries = %d, want 1 despite sibling failure", len(working.titles))
	}
}
