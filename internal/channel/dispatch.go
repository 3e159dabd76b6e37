package channel

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultUsername is the webhook username used when neither the endpoint
	// nor the configuration names one.
	DefaultUsername = "Telegram Discord Mirror Bot"
	// DefaultAvatarURL is Discord's stock avatar.
	DefaultAvatarURL = "https://discord.com/assets/1f0bfc0865d324c2587920a7d80c609b.png"
)

// EndpointResult is the outcome of one endpoint send.
type EndpointResult struct {
	Endpoint DestinationEndpoint
	Err      error
}

// DispatchReport summarizes what happened to one message.
type DispatchReport struct {
	ChannelID  ChannelID
	MessageID  int
	Matched    bool
	Skipped    bool
	HasText    bool
	Delivered  []string
	Dropped    []error
	Endpoints  []EndpointResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed returns how many endpoint sends failed.
func (r DispatchReport) Failed() int {
	n := 0
	for _, item := range r.Endpoints {
		if item.Err != nil {
			n++
		}
	}
	return n
}

// DispatchCoordinator resolves routes, joins fetches and fans a message out to endpoints.
type DispatchCoordinator struct {
	routes        RouteLookup
	sender        EndpointSender
	defaultName   string
	defaultAvatar string
	archiver      Archiver
	sink          ReportSink
	logger        *slog.Logger
}

// DispatchOption configures a DispatchCoordinator.
type DispatchOption func(*DispatchCoordinator)

// WithDefaultIdentity sets the username and avatar used for endpoints that leave them empty.
func WithDefaultIdentity(username, avatarURL string) DispatchOption {
	return func(c *DispatchCoordinator) {
		if v := strings.TrimSpace(username); v != "" {
			c.defaultName = v
		}
		if v := strings.TrimSpace(avatarURL); v != "" {
			c.defaultAvatar = v
		}
	}
}

// WithArchiver persists the surviving attachments of every routed message.
func WithArchiver(a Archiver) DispatchOption {
	return func(c *DispatchCoordinator) {
		c.archiver = a
	}
}

// WithReportSink records a DispatchReport for every routed message.
func WithReportSink(s ReportSink) DispatchOption {
	return func(c *DispatchCoordinator) {
		c.sink = s
	}
}

// NewDispatchCoordinator creates a coordinator over routes and sender.
func NewDispatchCoordinator(log *slog.Logger, routes RouteLookup, sender EndpointSender, opts ...DispatchOption) *DispatchCoordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &DispatchCoordinator{
		routes:        routes,
		sender:        sender,
		defaultName:   DefaultUsername,
		defaultAvatar: DefaultAvatarURL,
		logger:        log.With(slog.String("component", "dispatch")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Dispatch delivers msg to every endpoint routed for channelID. Unmapped
// channels return immediately without awaiting fetches. Failed fetches are
// dropped individually, and a failing endpoint never stops the next one.
func (c *DispatchCoordinator) Dispatch(ctx context.Context, channelID ChannelID, msg UnifiedMessage) DispatchReport {
	report := DispatchReport{
		ChannelID: channelID,
		MessageID: msg.MessageID,
		HasText:   msg.HasText(),
		StartedAt: time.Now().UTC(),
	}
	endpoints, ok := c.lookup(channelID)
	if !ok {
		report.FinishedAt = time.Now().UTC()
		return report
	}
	report.Matched = true
	log := c.logger.With(slog.String("channel_id", channelID.String()), slog.Int("message_id", msg.MessageID))

	files, dropped := c.join(ctx, msg.Attachments)
	report.Dropped = dropped
	for _, err := range dropped {
		log.Warn("attachment dropped", slog.Any("error", err))
	}
	for _, f := range files {
		report.Delivered = append(report.Delivered, f.Name)
	}

	if !msg.HasText() && len(files) == 0 {
		log.Warn("nothing to send, message skipped")
		report.Skipped = true
		report.FinishedAt = time.Now().UTC()
		c.record(ctx, report)
		return report
	}

	if c.archiver != nil && len(files) > 0 {
		if err := c.archiver.Archive(ctx, channelID, msg.MessageID, files); err != nil {
			log.Warn("archive attachments failed", slog.Any("error", err))
		}
	}

	report.Endpoints = make([]EndpointResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		err := c.send(ctx, endpoint, msg.Text, files)
		report.Endpoints = append(report.Endpoints, EndpointResult{Endpoint: endpoint, Err: err})
		if err != nil {
			log.Error("endpoint send failed", slog.String("endpoint", endpoint.Redacted()), slog.Any("error", err))
			continue
		}
		log.Info("endpoint send ok", slog.String("endpoint", endpoint.Redacted()), slog.Int("files", len(files)))
	}
	report.FinishedAt = time.Now().UTC()
	c.record(ctx, report)
	return report
}

func (c *DispatchCoordinator) lookup(channelID ChannelID) ([]DestinationEndpoint, bool) {
	if c.routes == nil {
		return nil, false
	}
	endpoints, ok := c.routes.Lookup(channelID)
	if !ok || len(endpoints) == 0 {
		return nil, false
	}
	return endpoints, true
}

// join awaits every attachment concurrently and keeps the successes in
// message order.
func (c *DispatchCoordinator) join(ctx context.Context, pending []*PendingAttachment) ([]OutboundFile, []error) {
	if len(pending) == 0 {
		return nil, nil
	}
	results := make([][]byte, len(pending))
	errs := make([]error, len(pending))
	var g errgroup.Group
	for i, p := range pending {
		g.Go(func() error {
			results[i], errs[i] = p.Await(ctx)
			return nil
		})
	}
	_ = g.Wait()

	files := make([]OutboundFile, 0, len(pending))
	var dropped []error
	for i, p := range pending {
		if errs[i] != nil {
			dropped = append(dropped, errs[i])
			continue
		}
		files = append(files, OutboundFile{Name: p.Ref().FileName, Data: results[i]})
	}
	return files, dropped
}

func (c *DispatchCoordinator) send(ctx context.Context, endpoint DestinationEndpoint, text string, files []OutboundFile) error {
	if c.sender == nil {
		return &DispatchError{Endpoint: endpoint, Err: ErrEndpointUnreachable}
	}
	payload := OutboundPayload{
		Text:      text,
		Username:  firstNonEmpty(endpoint.Name, c.defaultName),
		AvatarURL: firstNonEmpty(endpoint.AvatarURL, c.defaultAvatar),
		Files:     append([]OutboundFile(nil), files...),
	}
	if err := c.sender.Send(ctx, endpoint, payload); err != nil {
		return &DispatchError{Endpoint: endpoint, Err: normalizeSendErr(err)}
	}
	return nil
}

func (c *DispatchCoordinator) record(ctx context.Context, report DispatchReport) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Record(ctx, report); err != nil {
		c.logger.Warn("record dispatch report failed", slog.String("channel_id", report.ChannelID.String()), slog.Any("error", err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
