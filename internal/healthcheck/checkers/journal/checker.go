// Package journalchecker probes the dispatch journal backend.
package journalchecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/tgmirror/internal/healthcheck"
)

const (
	checkTypeJournal = "journal.backend"
	pingTimeout      = 3 * time.Second
)

// Pinger is implemented by journal drivers that can probe their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker pings the journal backend.
type Checker struct {
	logger *slog.Logger
	driver string
	pinger Pinger
}

// NewChecker creates a journal checker. A nil pinger reports the driver as
// not probeable.
func NewChecker(log *slog.Logger, driver string, pinger Pinger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger: log.With(slog.String("checker", "healthcheck_journal")),
		driver: driver,
		pinger: pinger,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:       checkTypeJournal,
		Type:     checkTypeJournal,
		Subtitle: c.driver,
		Status:   healthcheck.StatusOK,
		Summary:  "Journal backend is reachable.",
	}
	if c.pinger == nil {
		item.Status = healthcheck.StatusUnknown
		item.Summary = "Journal backend cannot be probed."
		return []healthcheck.CheckResult{item}
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.pinger.Ping(pingCtx); err != nil {
		c.logger.Warn("journal ping failed", slog.String("driver", c.driver), slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = "Journal backend is unreachable."
		item.Detail = err.Error()
	}
	return []healthcheck.CheckResult{item}
}
