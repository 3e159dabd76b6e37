package channel

import (
	"context"
	"sync/atomic"
)

// InboundHandler is a callback invoked when a post arrives from a source channel.
type InboundHandler func(ctx context.Context, msg IncomingMessage) error

// Receiver is an adapter capable of establishing a long-lived connection to receive posts.
type Receiver interface {
	Name() string
	Connect(ctx context.Context, handler InboundHandler) (Connection, error)
}

// Connection represents an active, long-lived link to a source platform.
type Connection interface {
	Name() string
	Stop(ctx context.Context) error
	Running() bool
}

// FileFetcher retrieves attachment bytes from the source platform in two steps.
type FileFetcher interface {
	// ResolvePath turns an external file id into a transient download path.
	// Errors wrap ErrFileNotFound or ErrNetworkFailure.
	ResolvePath(ctx context.Context, fileID string) (string, error)
	// Download reads the file at path into memory. sizeHint pre-sizes the
	// buffer when positive. Errors wrap ErrNetworkFailure.
	Download(ctx context.Context, path string, sizeHint int64) ([]byte, error)
}

// EndpointSender delivers one payload to one destination endpoint.
// Errors wrap ErrEndpointRejected or ErrEndpointUnreachable.
type EndpointSender interface {
	Send(ctx context.Context, endpoint DestinationEndpoint, payload OutboundPayload) error
}

// RouteLookup resolves the endpoints of a source channel.
type RouteLookup interface {
	Lookup(id ChannelID) ([]DestinationEndpoint, bool)
}

// MimeResolver maps a MIME type to a file extension including the leading dot.
type MimeResolver interface {
	Resolve(mimeType string) (string, error)
}

// Archiver persists the attachments of a dispatched message.
type Archiver interface {
	Archive(ctx context.Context, channelID ChannelID, messageID int, files []OutboundFile) error
}

// ReportSink records the outcome of each routed message.
type ReportSink interface {
	Record(ctx context.Context, report DispatchReport) error
}

// BaseConnection is a default Connection implementation backed by a stop function.
type BaseConnection struct {
	name    string
	stop    func(ctx context.Context) error
	running atomic.Bool
}

// NewConnection creates a BaseConnection with the given name and stop function.
func NewConnection(name string, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{
		name: name,
		stop: stop,
	}
	conn.running.Store(true)
	return conn
}

// Name returns the receiver name this connection belongs to.
func (c *BaseConnection) Name() string {
	return c.name
}

// Stop gracefully shuts down the connection.
func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	c.running.Store(false)
	return c.stop(ctx)
}

// Running reports whether the connection is still active.
func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
