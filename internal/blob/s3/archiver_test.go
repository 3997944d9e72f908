package s3blob

import (
	"context"
	"io"
	"testing"
	"time"
)

type capturePut struct {
	path        string
	contentType string
	body        []byte
	calls       int
}

func (c *capturePut) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	c.calls++
	c.path = path
	c.contentType = contentType
	c.body, _ = io.ReadAll(data)
	return nil
}

func TestArchiveRawPage(t *testing.T) {
	sink := &capturePut{}
	a := NewArchiver(sink)

	fetchedAt := time.Date(2026, 8, 31, 14, 30, 15, 0, time.UTC)
	path, err := a.ArchiveRawPage(context.Background(), []byte(`[{"id":"1"}]`), fetchedAt)
	if err != nil {
		t.Fatalf("ArchiveRawPage() error = %v", err)
	}
	if want := "raw/gamma/2026/08/31/143015.json"; path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if sink.contentType != "application/json" {
		t.Errorf("content type = %q", sink.contentType)
	}
	if string(sink.body) != `[{"id":"1"}]` {
		t.Errorf("payload altered in flight: %q", sink.body)
	}
}

func TestArchiveRawPageSkipsEmptyPayload(t *testing.T) {
	sink := &capturePut{}
	a := NewArchiver(sink)

	path, err := a.ArchiveRawPage(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("ArchiveRawPage() error = %v", err)
	}
	if path != "" || sink.calls != 0 {
		t.Errorf("empty payload should not upload, got path %q calls %d", path, sink.calls)
	}
}
