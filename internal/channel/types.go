package channel

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ChannelID identifies a source chat channel.
type ChannelID int64

// String returns the decimal form of the channel id.
func (id ChannelID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseChannelID parses a decimal channel id such as "-1001765404638".
func ParseChannelID(raw string) (ChannelID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return ChannelID(v), nil
}

// AttachmentKind is the media category of an attachment.
type AttachmentKind string

const (
	KindPhoto     AttachmentKind = "photo"
	KindAudio     AttachmentKind = "audio"
	KindFile      AttachmentKind = "file"
	KindSticker   AttachmentKind = "sticker"
	KindVideo     AttachmentKind = "video"
	KindAnimation AttachmentKind = "animation"
)

func (k AttachmentKind) String() string {
	return string(k)
}

// PhotoVariant is one resolution of a photo.
type PhotoVariant struct {
	FileID   string
	UniqueID string
	Width    int
	Height   int
	Size     int64
}

// MediaFile is a single audio, document, video or animation payload.
// Size is zero when the platform did not report it.
type MediaFile struct {
	FileID   string
	UniqueID string
	FileName string
	MimeType string
	Size     int64
}

// Sticker carries the flags that decide the sticker file format.
type Sticker struct {
	FileID     string
	UniqueID   string
	IsAnimated bool
	IsVideo    bool
	Size       int64
}

// IncomingMessage is one inbound channel post. Photo variants are ordered
// by ascending resolution. An empty Text means the post had neither text nor caption.
type IncomingMessage struct {
	ChannelID  ChannelID
	MessageID  int
	Text       string
	Photo      []PhotoVariant
	Audio      *MediaFile
	Document   *MediaFile
	Sticker    *Sticker
	Video      *MediaFile
	Animation  *MediaFile
	ReceivedAt time.Time
}

// HasMedia reports whether any media field is populated.
func (m IncomingMessage) HasMedia() bool {
	return len(m.Photo) > 0 || m.Audio != nil || m.Document != nil || m.Sticker != nil || m.Video != nil || m.Animation != nil
}

// AttachmentRef is a classified attachment awaiting retrieval.
// SizeHint is zero when the platform did not declare a size.
type AttachmentRef struct {
	Kind     AttachmentKind
	FileID   string
	UniqueID string
	SizeHint int64
	FileName string
}

// DestinationEndpoint is one webhook that receives mirrored posts.
type DestinationEndpoint struct {
	URL       string `json:"url" yaml:"url" toml:"url" validate:"required,http_url"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
	AvatarURL string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty" toml:"avatar_url" validate:"omitempty,http_url"`
}

// Redacted returns the endpoint URL with its secret path segments masked,
// suitable for logs and API responses.
func (e DestinationEndpoint) Redacted() string {
	return RedactURL(e.URL)
}

// RedactURL masks every path segment after the third, which hides webhook tokens.
func RedactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "<invalid>"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	keep := 3
	if len(parts) > keep {
		for i := keep; i < len(parts); i++ {
			parts[i] = "***"
		}
	}
	return u.Scheme + "://" + u.Host + "/" + strings.Join(parts, "/")
}

// ChannelRoute maps one source channel to its ordered endpoints.
type ChannelRoute struct {
	ChannelID ChannelID             `json:"channel_id" yaml:"channel_id" toml:"channel_id" validate:"required"`
	Endpoints []DestinationEndpoint `json:"endpoints" yaml:"endpoints" toml:"endpoints" validate:"required,min=1,dive"`
}

// OutboundFile is one named attachment body. Data is shared between
// sends and must not be modified.
type OutboundFile struct {
	Name string
	Data []byte
}

// OutboundPayload is what an EndpointSender delivers to one endpoint.
type OutboundPayload struct {
	Text      string
	Username  string
	AvatarURL string
	Files     []OutboundFile
}

// IsEmpty reports whether the payload carries neither text nor files.
func (p OutboundPayload) IsEmpty() bool {
	return p.Text == "" && len(p.Files) == 0
}
