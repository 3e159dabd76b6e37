package route

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/memohai/tgmirror/internal/channel"
)

// Source supplies the full set of routes on every load.
type Source interface {
	Load(ctx context.Context) ([]channel.ChannelRoute, error)
}

// StaticSource returns a fixed set of routes.
type StaticSource []channel.ChannelRoute

// Load returns a copy of the static routes.
func (s StaticSource) Load(_ context.Context) ([]channel.ChannelRoute, error) {
	return append([]channel.ChannelRoute(nil), s...), nil
}

// File is the on-disk routes document.
type File struct {
	Channels []channel.ChannelRoute `yaml:"channels" toml:"channels"`
}

// FileSource reads routes from a YAML or TOML file chosen by extension.
type FileSource struct {
	Path string
}

// Load reads and decodes the routes file.
func (s FileSource) Load(_ context.Context) ([]channel.ChannelRoute, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return nil, fmt.Errorf("routes file path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return Decode(filepath.Ext(path), raw)
}

// Decode parses a routes document. ext selects the format: ".yaml", ".yml" or ".toml".
func Decode(ext string, raw []byte) ([]channel.ChannelRoute, error) {
	var doc File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml routes: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode toml routes: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported routes file extension %q", ext)
	}
	return doc.Channels, nil
}

// Encode renders routes as a YAML routes document.
func Encode(routes []channel.ChannelRoute) ([]byte, error) {
	return yaml.Marshal(File{Channels: routes})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every route and reports all problems at once.
func Validate(routes []channel.ChannelRoute) error {
	var errs []error
	seen := map[channel.ChannelID]bool{}
	for i, r := range routes {
		if err := validate.Struct(r); err != nil {
			errs = append(errs, fmt.Errorf("route %d (channel %s): %w", i, r.ChannelID, err))
			continue
		}
		if seen[r.ChannelID] {
			errs = append(errs, fmt.Errorf("route %d: %w: channel %s", i, ErrDuplicateRoute, r.ChannelID))
		}
		seen[r.ChannelID] = true
	}
	return errors.Join(errs...)
}
