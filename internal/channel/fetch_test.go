package channel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestScheduleAwaitIsIdempotent(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("payload")}}
	s := NewFetchScheduler(discardLogger(), fetcher)
	p := s.Schedule(context.Background(), AttachmentRef{Kind: KindFile, FileID: "f1", FileName: "a.txt"})

	for i := 0; i < 3; i++ {
		data, err := p.Await(context.Background())
		if err != nil {
			t.Fatalf("await %d: %v", i, err)
		}
		if string(data) != "payload" {
			t.Fatalf("await %d: unexpected data %q", i, data)
		}
	}
	if got := fetcher.resolves.Load(); got != 1 {
		t.Fatalf("fetch must start once, resolved %d times", got)
	}
	if p.State() != FetchResolved {
		t.Fatalf("state = %s, want resolved", p.State())
	}
}

func TestTakeTransfersOwnershipOnce(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("x")}}
	s := NewFetchScheduler(discardLogger(), fetcher)
	p := s.Schedule(context.Background(), AttachmentRef{FileID: "f1"})

	if _, err := p.Take(context.Background()); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if _, err := p.Take(context.Background()); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("second take error = %v, want ErrAlreadyConsumed", err)
	}
	if p.State() != FetchConsumed {
		t.Fatalf("state = %s, want consumed", p.State())
	}
	if data, err := p.Await(context.Background()); err != nil || string(data) != "x" {
		t.Fatalf("await after take = (%q, %v)", data, err)
	}
}

func TestStartFetchOnlyOnce(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("x")}}
	s := NewFetchScheduler(discardLogger(), fetcher)
	p := s.Create(AttachmentRef{FileID: "f1"})
	if p.State() != FetchScheduled {
		t.Fatalf("created attachment state = %s", p.State())
	}
	if !s.StartFetch(context.Background(), p) {
		t.Fatalf("first StartFetch must start")
	}
	if s.StartFetch(context.Background(), p) {
		t.Fatalf("second StartFetch must be a no-op")
	}
	if _, err := p.Await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}
	if got := fetcher.resolves.Load(); got != 1 {
		t.Fatalf("resolved %d times, want 1", got)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		files:  map[string][]byte{},
		broken: map[string]bool{"bad": true},
	}
	s := NewFetchScheduler(discardLogger(), fetcher)

	missing := s.Schedule(context.Background(), AttachmentRef{FileID: "gone"})
	_, err := missing.Await(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("missing file error = %v, want FetchError wrapping ErrFileNotFound", err)
	}
	if missing.State() != FetchFailed {
		t.Fatalf("state = %s, want failed", missing.State())
	}

	broken := s.Schedule(context.Background(), AttachmentRef{FileID: "bad"})
	if _, err := broken.Await(context.Background()); !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("broken download error = %v, want ErrNetworkFailure", err)
	}

	empty := s.Schedule(context.Background(), AttachmentRef{})
	if _, err := empty.Await(context.Background()); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("empty file id error = %v, want ErrFileNotFound", err)
	}
}

func TestFetchSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("late")}, delay: 20 * time.Millisecond}
	s := NewFetchScheduler(discardLogger(), fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	p := s.Schedule(ctx, AttachmentRef{FileID: "f1"})
	cancel()

	data, err := p.Await(context.Background())
	if err != nil || string(data) != "late" {
		t.Fatalf("await = (%q, %v), fetch must not follow caller cancellation", data, err)
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("slow")}, delay: time.Second}
	s := NewFetchScheduler(discardLogger(), fetcher)
	p := s.Schedule(context.Background(), AttachmentRef{FileID: "f1"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("await error = %v, want deadline exceeded", err)
	}
}

func TestFetchConcurrencyGate(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{}
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("f%d", i)] = []byte{byte(i)}
	}
	fetcher := &fakeFetcher{files: files, delay: 15 * time.Millisecond}
	s := NewFetchScheduler(discardLogger(), fetcher, WithFetchConcurrency(2))

	var items []*PendingAttachment
	for id := range files {
		items = append(items, s.Schedule(context.Background(), AttachmentRef{FileID: id}))
	}
	for _, p := range items {
		if _, err := p.Await(context.Background()); err != nil {
			t.Fatalf("await: %v", err)
		}
	}
	if peak := fetcher.peak.Load(); peak > 2 {
		t.Fatalf("peak in-flight downloads = %d, want <= 2", peak)
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{files: map[string][]byte{"f1": []byte("x")}, delay: time.Second}
	s := NewFetchScheduler(discardLogger(), fetcher, WithFetchTimeout(10*time.Millisecond))
	p := s.Schedule(context.Background(), AttachmentRef{FileID: "f1"})
	if _, err := p.Await(context.Background()); !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("timed out fetch error = %v, want ErrNetworkFailure", err)
	}
}

func TestFetchTimeoutExcludesSlotWait(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3"), "d": []byte("4")}
	fetcher := &fakeFetcher{files: files, delay: 30 * time.Millisecond}
	s := NewFetchScheduler(discardLogger(), fetcher, WithFetchConcurrency(1), WithFetchTimeout(200*time.Millisecond))

	var items []*PendingAttachment
	for _, id := range []string{"a", "b", "c", "d", "a", "b", "c", "d"} {
		items = append(items, s.Schedule(context.Background(), AttachmentRef{FileID: id}))
	}
	for i, p := range items {
		if _, err := p.Await(context.Background()); err != nil {
			t.Fatalf("attachment %d queued behind the gate failed: %v", i, err)
		}
	}
}
