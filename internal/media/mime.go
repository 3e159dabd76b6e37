package media

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// defaultExtensions covers the media types Telegram reports for audio,
// documents, videos and animations.
var defaultExtensions = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"audio/mpeg":               ".mp3",
	"audio/mp3":                ".mp3",
	"audio/mp4":                ".m4a",
	"audio/x-m4a":              ".m4a",
	"audio/aac":                ".aac",
	"audio/ogg":                ".ogg",
	"audio/opus":               ".opus",
	"audio/wav":                ".wav",
	"audio/x-wav":              ".wav",
	"audio/flac":               ".flac",
	"audio/x-flac":             ".flac",
	"video/mp4":                ".mp4",
	"video/webm":               ".webm",
	"video/quicktime":          ".mov",
	"video/x-matroska":         ".mkv",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/x-tgsticker":  ".tgs",
	"application/json":         ".json",
	"application/octet-stream": ".bin",
	"text/plain":               ".txt",
	"text/csv":                 ".csv",
}

// MimeResolver maps MIME types to canonical file extensions.
// The table is fixed at construction; a resolver is safe for concurrent use.
type MimeResolver struct {
	table    map[string]string
	fallback bool
}

// ResolverOption configures a MimeResolver.
type ResolverOption func(*MimeResolver)

// WithExtensions adds or overrides table entries.
func WithExtensions(entries map[string]string) ResolverOption {
	return func(r *MimeResolver) {
		for k, v := range entries {
			key := normalizeMime(k)
			if key == "" || strings.TrimSpace(v) == "" {
				continue
			}
			ext := strings.TrimSpace(v)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			r.table[key] = ext
		}
	}
}

// WithRegistryFallback toggles lookups in the mimetype registry for types
// missing from the table.
func WithRegistryFallback(enabled bool) ResolverOption {
	return func(r *MimeResolver) {
		r.fallback = enabled
	}
}

// NewMimeResolver builds a resolver over the default table.
func NewMimeResolver(opts ...ResolverOption) *MimeResolver {
	r := &MimeResolver{
		table:    make(map[string]string, len(defaultExtensions)),
		fallback: true,
	}
	for k, v := range defaultExtensions {
		r.table[k] = v
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the extension, including the leading dot, for mimeType.
func (r *MimeResolver) Resolve(mimeType string) (string, error) {
	key := normalizeMime(mimeType)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownMimeType)
	}
	if ext, ok := r.table[key]; ok {
		return ext, nil
	}
	if r.fallback {
		if m := mimetype.Lookup(key); m != nil && m.Extension() != "" {
			return m.Extension(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMimeType, key)
}

func normalizeMime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		return parsed
	}
	if idx := strings.Index(raw, ";"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// DetectContentType sniffs the MIME type of data.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
