package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// FetchState is the lifecycle position of a PendingAttachment.
type FetchState int32

const (
	FetchScheduled FetchState = iota
	FetchFetching
	FetchResolved
	FetchFailed
	FetchConsumed
)

func (s FetchState) String() string {
	switch s {
	case FetchScheduled:
		return "scheduled"
	case FetchFetching:
		return "fetching"
	case FetchResolved:
		return "resolved"
	case FetchFailed:
		return "failed"
	case FetchConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// PendingAttachment is an AttachmentRef with a write-once fetch result.
// Await may be called any number of times; Take hands the bytes out once.
type PendingAttachment struct {
	ref   AttachmentRef
	start sync.Once
	done  chan struct{}
	state atomic.Int32
	taken atomic.Bool

	data []byte
	err  error
}

func newPendingAttachment(ref AttachmentRef) *PendingAttachment {
	return &PendingAttachment{
		ref:  ref,
		done: make(chan struct{}),
	}
}

// Ref returns the classified attachment.
func (p *PendingAttachment) Ref() AttachmentRef {
	return p.ref
}

// State returns the current fetch state.
func (p *PendingAttachment) State() FetchState {
	return FetchState(p.state.Load())
}

// Done is closed once the fetch has resolved or failed.
func (p *PendingAttachment) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the fetch completes or ctx ends. The returned slice
// is shared and must not be modified.
func (p *PendingAttachment) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.data, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Take is Await that succeeds for exactly one caller.
func (p *PendingAttachment) Take(ctx context.Context) ([]byte, error) {
	data, err := p.Await(ctx)
	if err != nil {
		return nil, err
	}
	if !p.taken.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConsumed
	}
	p.state.Store(int32(FetchConsumed))
	return data, nil
}

func (p *PendingAttachment) complete(data []byte, err error) {
	p.data = data
	p.err = err
	if err != nil {
		p.state.Store(int32(FetchFailed))
	} else {
		p.state.Store(int32(FetchResolved))
	}
	close(p.done)
}

// FetchScheduler starts attachment downloads eagerly and bounds how many
// run at once across the process.
type FetchScheduler struct {
	fetcher FileFetcher
	gate    *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
}

// SchedulerOption configures a FetchScheduler.
type SchedulerOption func(*FetchScheduler)

// WithFetchConcurrency bounds in-flight fetches. Zero or less means unbounded.
func WithFetchConcurrency(n int) SchedulerOption {
	return func(s *FetchScheduler) {
		if n > 0 {
			s.gate = semaphore.NewWeighted(int64(n))
		} else {
			s.gate = nil
		}
	}
}

// WithFetchTimeout bounds a single fetch including the wait for the gate.
func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *FetchScheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewFetchScheduler creates a scheduler over fetcher.
func NewFetchScheduler(log *slog.Logger, fetcher FileFetcher, opts ...SchedulerOption) *FetchScheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &FetchScheduler{
		fetcher: fetcher,
		gate:    semaphore.NewWeighted(8),
		timeout: 60 * time.Second,
		logger:  log.With(slog.String("component", "fetch")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create wraps ref without starting any I/O.
func (s *FetchScheduler) Create(ref AttachmentRef) *PendingAttachment {
	return newPendingAttachment(ref)
}

// StartFetch launches the download for p in the background. It reports
// false if p was already started. The fetch outlives ctx cancellation but
// keeps its values.
func (s *FetchScheduler) StartFetch(ctx context.Context, p *PendingAttachment) bool {
	started := false
	p.start.Do(func() {
		started = true
		go s.run(context.WithoutCancel(ctx), p)
	})
	return started
}

// Schedule is Create followed by StartFetch.
func (s *FetchScheduler) Schedule(ctx context.Context, ref AttachmentRef) *PendingAttachment {
	p := s.Create(ref)
	s.StartFetch(ctx, p)
	return p
}

// ScheduleAll schedules every ref, preserving order.
func (s *FetchScheduler) ScheduleAll(ctx context.Context, refs []AttachmentRef) []*PendingAttachment {
	items := make([]*PendingAttachment, 0, len(refs))
	for _, ref := range refs {
		items = append(items, s.Schedule(ctx, ref))
	}
	return items
}

// run waits for a fetch slot, then downloads under the per-fetch timeout.
// Time spent queued for a slot does not count against the timeout.
func (s *FetchScheduler) run(ctx context.Context, p *PendingAttachment) {
	if s.gate != nil {
		if err := s.gate.Acquire(ctx, 1); err != nil {
			p.complete(nil, &FetchError{Ref: p.ref, Err: fmt.Errorf("%w: wait for fetch slot: %w", ErrNetworkFailure, err)})
			return
		}
		defer s.gate.Release(1)
	}
	p.state.Store(int32(FetchFetching))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	data, err := s.fetch(ctx, p.ref)
	if err != nil {
		p.complete(nil, &FetchError{Ref: p.ref, Err: err})
		return
	}
	s.logger.Debug("attachment fetched",
		slog.String("kind", p.ref.Kind.String()),
		slog.String("file_name", p.ref.FileName),
		slog.Int("bytes", len(data)),
		slog.Duration("took", time.Since(started)),
	)
	p.complete(data, nil)
}

func (s *FetchScheduler) fetch(ctx context.Context, ref AttachmentRef) ([]byte, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no file fetcher configured", ErrNetworkFailure)
	}
	if strings.TrimSpace(ref.FileID) == "" {
		return nil, fmt.Errorf("%w: empty file id", ErrFileNotFound)
	}
	path, err := s.fetcher.ResolvePath(ctx, ref.FileID)
	if err != nil {
		return nil, normalizeFetchErr(err)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty download path", ErrFileNotFound)
	}
	data, err := s.fetcher.Download(ctx, path, ref.SizeHint)
	if err != nil {
		return nil, normalizeFetchErr(err)
	}
	return data, nil
}
