package telegram

import (
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tgmirror/internal/media"
)

// Name identifies the Telegram receiver in logs and connection status.
const Name = "telegram"

const (
	defaultPollTimeout = 30
	pollRetryDelay     = 3 * time.Second
)

// Config holds the Bot API credentials and endpoints.
type Config struct {
	BotToken string
	// APIEndpoint is a format string taking the token and the method name.
	APIEndpoint string
	// FileEndpoint is a format string taking the token and the file path.
	FileEndpoint string
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout    int
	RenderEntities bool
	MaxBytes       int64
	HTTPClient     *http.Client
}

func (c Config) withDefaults() Config {
	c.BotToken = strings.TrimSpace(c.BotToken)
	if strings.TrimSpace(c.APIEndpoint) == "" {
		c.APIEndpoint = tgbotapi.APIEndpoint
	}
	if strings.TrimSpace(c.FileEndpoint) == "" {
		c.FileEndpoint = tgbotapi.FileEndpoint
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = media.MaxAssetBytes
	}
	if c.HTTPClient == nil {
		// the client timeout must outlast one long poll
		c.HTTPClient = &http.Client{Timeout: time.Duration(c.PollTimeout)*time.Second + 30*time.Second}
	}
	return c
}
