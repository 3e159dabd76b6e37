package discord

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var webhookHosts = map[string]bool{
	"discord.com":           true,
	"discordapp.com":        true,
	"canary.discord.com":    true,
	"ptb.discord.com":       true,
	"canary.discordapp.com": true,
	"ptb.discordapp.com":    true,
}

var webhookPath = regexp.MustCompile(`^/api(?:/v\d+)?/webhooks/(\d+)/([A-Za-z0-9_\-]+)/?$`)

// Webhook is the id and token pair addressed by a webhook URL.
type Webhook struct {
	ID    string
	Token string
}

// ParseWebhookURL extracts the webhook id and token from an execute URL such as
// https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (Webhook, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Webhook{}, fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Webhook{}, fmt.Errorf("webhook url must be http(s), got %q", u.Scheme)
	}
	if !webhookHosts[strings.ToLower(u.Hostname())] {
		return Webhook{}, fmt.Errorf("webhook host %q is not a discord host", u.Hostname())
	}
	m := webhookPath.FindStringSubmatch(u.Path)
	if m == nil {
		return Webhook{}, errors.New("webhook url path is not /api/webhooks/<id>/<token>")
	}
	return Webhook{ID: m[1], Token: m[2]}, nil
}
