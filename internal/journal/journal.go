// Package journal records the outcome of every routed channel post.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/tgmirror/internal/channel"
)

// ErrUnsupported is returned by Recent when the driver cannot read back entries.
var ErrUnsupported = errors.New("journal driver does not support reads")

// Entry is one journaled dispatch.
type Entry struct {
	ID          uuid.UUID         `json:"id"`
	ChannelID   channel.ChannelID `json:"channel_id"`
	MessageID   int               `json:"message_id"`
	Attachments int               `json:"attachments"`
	Dropped     int               `json:"dropped"`
	Endpoints   int               `json:"endpoints"`
	Failed      int               `json:"failed"`
	Skipped     bool              `json:"skipped"`
	Errors      []string          `json:"errors,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Journal persists entries.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// FromReport flattens a dispatch report into an Entry with a fresh id.
func FromReport(r channel.DispatchReport) Entry {
	e := Entry{
		ID:          uuid.New(),
		ChannelID:   r.ChannelID,
		MessageID:   r.MessageID,
		Attachments: len(r.Delivered),
		Dropped:     len(r.Dropped),
		Endpoints:   len(r.Endpoints),
		Failed:      r.Failed(),
		Skipped:     r.Skipped,
		CreatedAt:   r.FinishedAt.UTC(),
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	for _, err := range r.Dropped {
		e.Errors = append(e.Errors, err.Error())
	}
	for _, res := range r.Endpoints {
		if res.Err != nil {
			e.Errors = append(e.Errors, res.Err.Error())
		}
	}
	return e
}

// Sink adapts a Journal to channel.ReportSink.
type Sink struct {
	journal Journal
	logger  *slog.Logger
}

// NewSink creates a Sink.
func NewSink(log *slog.Logger, j Journal) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{journal: j, logger: log.With(slog.String("component", "journal"))}
}

// Record journals report.
func (s *Sink) Record(ctx context.Context, report channel.DispatchReport) error {
	entry := FromReport(report)
	if err := s.journal.Record(ctx, entry); err != nil {
		return err
	}
	s.logger.Debug("dispatch journaled", slog.String("id", entry.ID.String()), slog.String("channel_id", entry.ChannelID.String()))
	return nil
}

// Noop discards every entry.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }

func (Noop) Recent(context.Context, int) ([]Entry, error) { return nil, ErrUnsupported }

func (Noop) Close() error { return nil }

// ClampLimit bounds a requested page size to [1, 500], defaulting to 50.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
