package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memohai/tgmirror/internal/media"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves files from memory. Missing ids fail with ErrFileNotFound,
// ids listed in broken fail with ErrNetworkFailure on download.
type fakeFetcher struct {
	files    map[string][]byte
	broken   map[string]bool
	delay    time.Duration
	resolves atomic.Int32

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) ResolvePath(ctx context.Context, fileID string) (string, error) {
	f.resolves.Add(1)
	if _, ok := f.files[fileID]; !ok && !f.broken[fileID] {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return "files/" + fileID, nil
}

func (f *fakeFetcher) Download(ctx context.Context, path string, sizeHint int64) ([]byte, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	id := path[len("files/"):]
	if f.broken[id] {
		return nil, errors.New("connection reset by peer")
	}
	return f.files[id], nil
}

type sentPayload struct {
	Endpoint DestinationEndpoint
	Payload  OutboundPayload
}

// fakeSender records every send and fails endpoints listed in fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentPayload
	fail map[string]error
}

func (s *fakeSender) Send(ctx context.Context, endpoint DestinationEndpoint, payload OutboundPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentPayload{Endpoint: endpoint, Payload: payload})
	if err, ok := s.fail[endpoint.URL]; ok {
		return err
	}
	return nil
}

func (s *fakeSender) calls() []sentPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentPayload(nil), s.sent...)
}

// staticRoutes is a map-backed RouteLookup.
type staticRoutes map[ChannelID][]DestinationEndpoint

func (r staticRoutes) Lookup(id ChannelID) ([]DestinationEndpoint, bool) {
	eps, ok := r[id]
	return eps, ok
}

type recordingSink struct {
	mu      sync.Mutex
	reports []DispatchReport
}

func (s *recordingSink) Record(_ context.Context, report DispatchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func endpoint(n int) DestinationEndpoint {
	return DestinationEndpoint{
		URL:  fmt.Sprintf("https://discord.com/api/webhooks/%d/token-%d", n, n),
		Name: fmt.Sprintf("hook-%d", n),
	}
}

func newTestClassifier() *Classifier {
	return NewClassifier(media.NewMimeResolver())
}

// resolvedPending builds a PendingAttachment that already holds its result.
func resolvedPending(ref AttachmentRef, data []byte, err error) *PendingAttachment {
	p := newPendingAttachment(ref)
	p.start.Do(func() {})
	p.complete(data, err)
	return p
}
