// Package healthcheck aggregates runtime checks of the mirror into one report.
package healthcheck

import "context"

// Check statuses, from best to worst.
const (
	StatusOK      = "ok"
	StatusWarn    = "warn"
	StatusUnknown = "unknown"
	StatusError   = "error"
)

// CheckResult is one item in a status report. Type groups items by the
// subsystem that produced them, e.g. "receiver", "routes" or "journal".
type CheckResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Subtitle string         `json:"subtitle,omitempty"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Checker produces check items for one subsystem. Implementations must
// return promptly when ctx is done.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}
