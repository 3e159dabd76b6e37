package route

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/memohai/tgmirror/internal/channel"
)

const yamlRoutes = `
channels:
  - channel_id: -1001765404638
    endpoints:
      - url: https://discord.com/api/webhooks/1/a
        name: Herald
        avatar_url: https://cdn.example/icon.png
      - url: https://discord.com/api/webhooks/2/b
  - channel_id: -1001514642130
    endpoints:
      - url: https://discord.com/api/webhooks/3/c
`

const tomlRoutes = `
[[channels]]
channel_id = -1001765404638

  [[channels.endpoints]]
  url = "https://discord.com/api/webhooks/1/a"
  name = "Herald"
`

func TestFileSourceYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(yamlRoutes), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	routes, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(routes) != 2 || routes[0].ChannelID != -1001765404638 || len(routes[0].Endpoints) != 2 {
		t.Fatalf("unexpected routes: %+v", routes)
	}
	if routes[0].Endpoints[0].Name != "Herald" || routes[0].Endpoints[0].AvatarURL == "" {
		t.Fatalf("endpoint fields lost: %+v", routes[0].Endpoints[0])
	}
	if err := Validate(routes); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestFileSourceTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.toml")
	if err := os.WriteFile(path, []byte(tomlRoutes), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	routes, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(routes) != 1 || routes[0].Endpoints[0].URL != "https://discord.com/api/webhooks/1/a" {
		t.Fatalf("unexpected routes: %+v", routes)
	}
}

func TestDecodeUnsupportedExtension(t *testing.T) {
	t.Parallel()

	if _, err := Decode(".json", []byte("{}")); err == nil {
		t.Fatalf("expected error for json")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		routes  []channel.ChannelRoute
		wantErr bool
	}{
		{name: "ok", routes: []channel.ChannelRoute{{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{hook("a")}}}},
		{name: "no endpoints", routes: []channel.ChannelRoute{{ChannelID: 1}}, wantErr: true},
		{name: "zero channel", routes: []channel.ChannelRoute{{Endpoints: []channel.DestinationEndpoint{hook("a")}}}, wantErr: true},
		{name: "bad url", routes: []channel.ChannelRoute{{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{{URL: "ftp://x/y"}}}}, wantErr: true},
		{name: "bad avatar", routes: []channel.ChannelRoute{{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{{URL: "https://x/y", AvatarURL: "nope"}}}}, wantErr: true},
		{name: "duplicate", routes: []channel.ChannelRoute{
			{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{hook("a")}},
			{ChannelID: 1, Endpoints: []channel.DestinationEndpoint{hook("b")}},
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.routes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	t.Parallel()

	in := []channel.ChannelRoute{{ChannelID: -7, Endpoints: []channel.DestinationEndpoint{hook("a")}}}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(".yaml", raw)
	if err != nil || len(out) != 1 || out[0].ChannelID != -7 {
		t.Fatalf("decode = %+v, %v", out, err)
	}
}
