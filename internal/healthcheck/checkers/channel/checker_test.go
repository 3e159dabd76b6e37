package channelchecker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/memohai/tgmirror/internal/channel"
)

type fakeConnectionObserver struct {
	items []channel.ConnectionStatus
}

func (f *fakeConnectionObserver) ConnectionStatuses() []channel.ConnectionStatus {
	return f.items
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerListChecks(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	checker := NewChecker(newTestLogger(), &fakeConnectionObserver{
		items: []channel.ConnectionStatus{
			{Name: "telegram", Running: true, UpdatedAt: now},
			{Name: "backup", Running: false, LastError: "getMe: unauthorized", UpdatedAt: now},
		},
	})

	items := checker.ListChecks(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(items))
	}
	if items[0].ID != "channel.receiver.telegram" || items[0].Status != "ok" {
		t.Fatalf("unexpected first check: %+v", items[0])
	}
	if items[1].Status != "error" || items[1].Detail != "getMe: unauthorized" {
		t.Fatalf("unexpected second check: %+v", items[1])
	}
	if items[0].Metadata["updated_at"] == nil {
		t.Fatalf("expected updated_at metadata")
	}
}

func TestCheckerNilObserver(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), nil)
	items := checker.ListChecks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected service warning check, got %d", len(items))
	}
	if items[0].Status != "warn" {
		t.Fatalf("expected warn status, got %s", items[0].Status)
	}
}
