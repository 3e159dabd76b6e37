// Package discord delivers mirrored posts to Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/media"
)

const defaultRequestTimeout = 30 * time.Second

// Config controls the webhook HTTP client and optional pacing.
type Config struct {
	RequestTimeout time.Duration
	// RatePerMinute caps executions per webhook. Zero disables pacing.
	RatePerMinute int
	HTTPClient    *http.Client
}

// Sender implements channel.EndpointSender over Discord webhooks.
type Sender struct {
	logger  *slog.Logger
	session *discordgo.Session
	limit   rate.Limit

	mu       sync.Mutex
	hooks    map[string]Webhook
	limiters map[string]*rate.Limiter
}

var setLoggerOnce sync.Once

// NewSender creates a Sender. No bot token is needed for webhook execution.
func NewSender(log *slog.Logger, cfg Config) (*Sender, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// one execution per send; failures are reported, never replayed
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false
	if cfg.HTTPClient != nil {
		session.Client = cfg.HTTPClient
	} else {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		session.Client = &http.Client{Timeout: timeout}
	}
	s := &Sender{
		logger:   log.With(slog.String("adapter", "discord")),
		session:  session,
		hooks:    map[string]Webhook{},
		limiters: map[string]*rate.Limiter{},
	}
	if cfg.RatePerMinute > 0 {
		s.limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	setLoggerOnce.Do(func() {
		logger := s.logger
		discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
			level := slog.LevelDebug
			if msgL == discordgo.LogError {
				level = slog.LevelError
			} else if msgL == discordgo.LogWarning {
				level = slog.LevelWarn
			}
			logger.Log(context.Background(), level, "discordgo", slog.String("msg", fmt.Sprintf(format, a...)))
		}
	})
	return s, nil
}

// Send executes the webhook behind endpoint with payload and waits for Discord to accept it.
func (s *Sender) Send(ctx context.Context, endpoint channel.DestinationEndpoint, payload channel.OutboundPayload) error {
	hook, err := s.webhook(endpoint.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", channel.ErrEndpointRejected, err)
	}
	if limiter := s.limiter(hook.ID); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: pacing: %w", channel.ErrEndpointUnreachable, err)
		}
	}
	params := &discordgo.WebhookParams{
		Content:   payload.Text,
		Username:  payload.Username,
		AvatarURL: payload.AvatarURL,
	}
	for _, f := range payload.Files {
		params.Files = append(params.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: media.DetectContentType(f.Data),
			Reader:      bytes.NewReader(f.Data),
		})
	}
	if _, err := s.session.WebhookExecute(hook.ID, hook.Token, true, params, discordgo.WithContext(ctx)); err != nil {
		return classifyError(err)
	}
	return nil
}

// Validate fetches the webhook behind endpoint to confirm it exists and
// the token is accepted. It returns the webhook's configured name.
func (s *Sender) Validate(ctx context.Context, endpoint channel.DestinationEndpoint) (string, error) {
	hook, err := s.webhook(endpoint.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", channel.ErrEndpointRejected, err)
	}
	wh, err := s.session.WebhookWithToken(hook.ID, hook.Token, discordgo.WithContext(ctx))
	if err != nil {
		return "", classifyError(err)
	}
	return wh.Name, nil
}

func (s *Sender) webhook(raw string) (Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hook, ok := s.hooks[raw]; ok {
		return hook, nil
	}
	hook, err := ParseWebhookURL(raw)
	if err != nil {
		return Webhook{}, err
	}
	s.hooks[raw] = hook
	return hook, nil
}

func (s *Sender) limiter(id string) *rate.Limiter {
	if s.limit == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		l = rate.NewLimiter(s.limit, 1)
		s.limiters[id] = l
	}
	return l
}

// classifyError maps client errors to ErrEndpointRejected. Rate limiting
// and everything else count as ErrEndpointUnreachable. Transport and rate
// limit errors lose their request URL, which carries the webhook token.
func classifyError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		retry := time.Duration(0)
		if rateErr.RateLimit != nil && rateErr.TooManyRequests != nil {
			retry = rateErr.RetryAfter
		}
		return fmt.Errorf("%w: rate limited, retry after %s", channel.ErrEndpointUnreachable, retry)
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", channel.ErrEndpointRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", channel.ErrEndpointUnreachable, err)
}
