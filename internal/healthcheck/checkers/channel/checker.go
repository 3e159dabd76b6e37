package channelchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/healthcheck"
)

const checkTypeReceiverConnection = "channel.receiver"

// ConnectionObserver reads runtime receiver connection statuses.
type ConnectionObserver interface {
	ConnectionStatuses() []channel.ConnectionStatus
}

// Checker evaluates receiver connection health checks.
type Checker struct {
	logger   *slog.Logger
	observer ConnectionObserver
}

// NewChecker creates a receiver health checker.
func NewChecker(log *slog.Logger, observer ConnectionObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_channel")),
		observer: observer,
	}
}

// ListChecks reports one item per registered receiver.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	// Connection observer is context-free; best effort early cancellation guard.
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.observer == nil {
		c.logger.Warn("channel healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeReceiverConnection + ".service",
				Type:    checkTypeReceiverConnection,
				Status:  healthcheck.StatusWarn,
				Summary: "Receiver checker service is not available.",
				Detail:  "connection observer is nil",
			},
		}
	}

	statuses := c.observer.ConnectionStatuses()
	checks := make([]healthcheck.CheckResult, 0, len(statuses))
	for idx, status := range statuses {
		name := strings.TrimSpace(status.Name)
		if name == "" {
			name = fmt.Sprintf("unknown_%d", idx+1)
		}
		item := healthcheck.CheckResult{
			ID:       checkTypeReceiverConnection + "." + name,
			Type:     checkTypeReceiverConnection,
			Subtitle: name,
			Status:   healthcheck.StatusError,
			Summary:  fmt.Sprintf("Receiver %s is disconnected.", name),
			Metadata: map[string]any{
				"running": status.Running,
			},
		}
		if status.UpdatedAt.Unix() > 0 {
			item.Metadata["updated_at"] = status.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		if status.Running {
			item.Status = healthcheck.StatusOK
			item.Summary = fmt.Sprintf("Receiver %s is connected.", name)
		} else if detail := strings.TrimSpace(status.LastError); detail != "" {
			item.Summary = fmt.Sprintf("Receiver %s connection failed.", name)
			item.Detail = detail
		}
		checks = append(checks, item)
	}
	return checks
}
