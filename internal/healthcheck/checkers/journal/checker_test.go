package journalchecker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckerStatuses(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		pinger Pinger
		want   string
	}{
		{name: "reachable", pinger: pingFunc(func(context.Context) error { return nil }), want: "ok"},
		{name: "down", pinger: pingFunc(func(context.Context) error { return errors.New("connection refused") }), want: "error"},
		{name: "not probeable", pinger: nil, want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items := NewChecker(log, "postgres", tt.pinger).ListChecks(context.Background())
			if len(items) != 1 || items[0].Status != tt.want {
				t.Fatalf("unexpected checks: %+v", items)
			}
		})
	}
}
