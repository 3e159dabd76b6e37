// Package telegram receives channel posts over the Bot API long-poll
// interface and downloads their files.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/media"
)

var setLoggerOnce sync.Once

// Adapter implements channel.Receiver and channel.FileFetcher for one bot.
type Adapter struct {
	logger *slog.Logger
	cfg    Config

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewAdapter creates an Adapter. The bot session is created on first use.
func NewAdapter(log *slog.Logger, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	adapter := &Adapter{
		logger: log.With(slog.String("adapter", Name)),
		cfg:    cfg.withDefaults(),
	}
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: adapter.logger})
	})
	return adapter
}

// Name returns the receiver name.
func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) getOrCreateBot() (*tgbotapi.BotAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bot != nil {
		return a.bot, nil
	}
	if a.cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(a.cfg.BotToken, a.cfg.APIEndpoint, a.cfg.HTTPClient)
	if err != nil {
		err = stripRequestURL(err)
		a.logger.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	a.bot = bot
	return bot, nil
}

// Connect starts long polling for channel posts and hands each one to handler.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	bot, err := a.getOrCreateBot()
	if err != nil {
		return nil, err
	}
	a.logger.Info("start", slog.String("bot", bot.Self.UserName))

	connCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.poll(connCtx, bot, handler)
	}()

	stop := func(stopCtx context.Context) error {
		a.logger.Info("stop")
		cancel()
		// an in-flight getUpdates finishes within one poll timeout
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
	return channel.NewConnection(Name, stop), nil
}

func (a *Adapter) poll(ctx context.Context, bot *tgbotapi.BotAPI, handler channel.InboundHandler) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := a.getUpdates(bot, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := pollRetryDelay
			if ra := retryAfter(err); ra > delay {
				delay = ra
			}
			a.logger.Warn("get updates failed", slog.Duration("retry_in", delay), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		for _, u := range updates {
			if u.ID >= offset {
				offset = u.ID + 1
			}
			if u.Post == nil {
				continue
			}
			a.logger.Debug(
				"inbound received",
				slog.String("channel_id", u.Post.ChannelID.String()),
				slog.Int("message_id", u.Post.MessageID),
				slog.Bool("has_media", u.Post.HasMedia()),
			)
			if err := handler(ctx, *u.Post); err != nil {
				a.logger.Error("handle inbound failed",
					slog.String("channel_id", u.Post.ChannelID.String()),
					slog.Int("message_id", u.Post.MessageID),
					slog.Any("error", err),
				)
			}
		}
	}
}

func (a *Adapter) getUpdates(bot *tgbotapi.BotAPI, offset int) ([]polledUpdate, error) {
	resp, err := bot.Request(tgbotapi.UpdateConfig{
		Offset:         offset,
		Timeout:        a.cfg.PollTimeout,
		AllowedUpdates: []string{"channel_post"},
	})
	if err != nil {
		return nil, stripRequestURL(err)
	}
	return decodeUpdates(resp.Result, a.cfg.RenderEntities)
}

// ResolvePath asks the Bot API for the transient download path of fileID.
func (a *Adapter) ResolvePath(_ context.Context, fileID string) (string, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return "", channel.ErrFileNotFound
	}
	bot, err := a.getOrCreateBot()
	if err != nil {
		return "", fmt.Errorf("%w: %w", channel.ErrNetworkFailure, err)
	}
	file, err := bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		if code, ok := apiErrorCode(err); ok && (code == http.StatusBadRequest || code == http.StatusNotFound) {
			return "", fmt.Errorf("%w: %w", channel.ErrFileNotFound, err)
		}
		return "", fmt.Errorf("%w: get file: %w", channel.ErrNetworkFailure, stripRequestURL(err))
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return "", fmt.Errorf("%w: empty file path", channel.ErrFileNotFound)
	}
	return file.FilePath, nil
}

// Download fetches the file at path. sizeHint pre-sizes the read buffer.
func (a *Adapter) Download(ctx context.Context, path string, sizeHint int64) ([]byte, error) {
	downloadURL := fmt.Sprintf(a.cfg.FileEndpoint, a.cfg.BotToken, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %w", channel.ErrNetworkFailure, err)
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", channel.ErrNetworkFailure, stripRequestURL(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: download status %d", channel.ErrNetworkFailure, resp.StatusCode)
	}
	if resp.ContentLength > a.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %w: max %d bytes", channel.ErrNetworkFailure, media.ErrAssetTooLarge, a.cfg.MaxBytes)
	}
	if sizeHint <= 0 && resp.ContentLength > 0 {
		sizeHint = resp.ContentLength
	}
	data, err := media.ReadAllWithHint(resp.Body, a.cfg.MaxBytes, sizeHint)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", channel.ErrNetworkFailure, err)
	}
	return data, nil
}

// stripRequestURL drops the request URL from transport errors. Bot API
// and file URLs carry the bot token.
func stripRequestURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	return err
}

func apiErrorCode(err error) (int, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val.Code, true
	}
	return 0, false
}

func retryAfter(err error) time.Duration {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil && ptr.RetryAfter > 0 {
		return time.Duration(ptr.RetryAfter) * time.Second
	}
	var val tgbotapi.Error
	if errors.As(err, &val) && val.RetryAfter > 0 {
		return time.Duration(val.RetryAfter) * time.Second
	}
	return 0
}
