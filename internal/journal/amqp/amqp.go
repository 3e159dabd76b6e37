// Package amqp publishes journal entries to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/memohai/tgmirror/internal/journal"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// Config addresses the broker and exchange.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Envelope is the published message body.
type Envelope struct {
	Meta  Meta          `json:"meta"`
	Entry journal.Entry `json:"entry"`
}

// Meta carries the envelope identity.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventType names the envelope type of a journal entry.
const EventType = "mirror.dispatched"

// Journal is a write-only journal.Journal that publishes with confirms.
type Journal struct {
	conn   *amqp091.Connection
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex
	ch *amqp091.Channel
}

// Dial connects, declares the exchange and puts the publish channel in confirm mode.
func Dial(log *slog.Logger, cfg Config) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Exchange) == "" {
		return nil, fmt.Errorf("amqp exchange is required")
	}
	if strings.TrimSpace(cfg.RoutingKey) == "" {
		cfg.RoutingKey = EventType
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &Journal{
		conn:   conn,
		cfg:    cfg,
		ch:     ch,
		logger: log.With(slog.String("component", "journal"), slog.String("driver", "amqp")),
	}, nil
}

// NewEnvelope wraps e for publishing.
func NewEnvelope(e journal.Entry) Envelope {
	id := e.ID.String()
	if e.ID == uuid.Nil {
		id = uuid.NewString()
	}
	return Envelope{
		Meta: Meta{
			ID:            id,
			Type:          EventType,
			CorrelationID: fmt.Sprintf("%s/%d", e.ChannelID, e.MessageID),
			OccurredAt:    e.CreatedAt,
		},
		Entry: e,
	}
}

// Record publishes one entry and waits for the broker confirm.
func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	env := NewEnvelope(e)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	conf, err := j.ch.PublishWithDeferredConfirmWithContext(
		ctx, j.cfg.Exchange, j.cfg.RoutingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.CorrelationID,
			Type:          env.Meta.Type,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if conf != nil {
		ok, err := conf.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait confirm: %w", err)
		}
		if !ok {
			return ErrNotConfirmed
		}
	}
	j.logger.Debug("published", slog.String("key", j.cfg.RoutingKey), slog.String("exchange", j.cfg.Exchange))
	return nil
}

// Recent is not supported by a publish-only journal.
func (j *Journal) Recent(context.Context, int) ([]journal.Entry, error) {
	return nil, journal.ErrUnsupported
}

// Close closes the channel and connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.ch.Close()
	return j.conn.Close()
}
