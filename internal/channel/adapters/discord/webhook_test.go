package discord

import (
	"strings"
	"testing"
)

func TestParseWebhookURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Webhook
		wantErr bool
	}{
		{raw: "https://discord.com/api/webhooks/123/abc-DEF_9", want: Webhook{ID: "123", Token: "abc-DEF_9"}},
		{raw: "https://discordapp.com/api/webhooks/1/t/", want: Webhook{ID: "1", Token: "t"}},
		{raw: "https://canary.discord.com/api/v10/webhooks/55/tok", want: Webhook{ID: "55", Token: "tok"}},
		{raw: "https://ptb.discord.com/api/webhooks/7/x", want: Webhook{ID: "7", Token: "x"}},
		{raw: "https://example.com/api/webhooks/1/t", wantErr: true},
		{raw: "https://discord.com/api/webhooks/abc/t", wantErr: true},
		{raw: "https://discord.com/api/webhooks/1", wantErr: true},
		{raw: "ftp://discord.com/api/webhooks/1/t", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseWebhookURL(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseWebhookURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseWebhookURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestParseWebhookURLErrorOmitsPath(t *testing.T) {
	t.Parallel()

	_, err := ParseWebhookURL("https://discord.com/hooks/77/PRIVATE-token")
	if err == nil {
		t.Fatalf("malformed path must fail")
	}
	if strings.Contains(err.Error(), "PRIVATE-token") {
		t.Fatalf("error echoes the configured path: %v", err)
	}
}
