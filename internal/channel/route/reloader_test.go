package route

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/memohai/tgmirror/internal/channel"
)

type swappableSource struct {
	mu     sync.Mutex
	routes []channel.ChannelRoute
	err    error
	loads  int
}

func (s *swappableSource) Load(context.Context) ([]channel.ChannelRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.routes, s.err
}

func (s *swappableSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func TestReloaderKeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := NewTable()
	src := &swappableSource{routes: []channel.ChannelRoute{{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{hook("a")}}}}
	r := NewReloader(log, table, src)

	if n, err := r.Reload(context.Background()); err != nil || n != 1 {
		t.Fatalf("reload = (%d, %v)", n, err)
	}

	src.mu.Lock()
	src.routes = []channel.ChannelRoute{{ChannelID: 2}}
	src.mu.Unlock()
	if _, err := r.Reload(context.Background()); err == nil {
		t.Fatalf("invalid routes must fail")
	}
	if _, ok := table.Lookup(1); !ok {
		t.Fatalf("previous table must survive invalid reload")
	}

	src.mu.Lock()
	src.err = errors.New("disk gone")
	src.mu.Unlock()
	if _, err := r.Reload(context.Background()); err == nil {
		t.Fatalf("source error must fail")
	}
	if table.Len() != 1 {
		t.Fatalf("previous table must survive source error")
	}
}

func TestReloaderSchedule(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &swappableSource{routes: []channel.ChannelRoute{{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{hook("a")}}}}
	r := NewReloader(log, NewTable(), src)

	if err := r.Start(context.Background(), "not a schedule"); err == nil {
		t.Fatalf("bad schedule must fail")
	}
	if err := r.Start(context.Background(), "@every 1s"); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for src.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduled reload never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
