// Package routeschecker reports whether the route table can route anything.
package routeschecker

import (
	"context"
	"fmt"
	"time"

	"github.com/memohai/tgmirror/internal/healthcheck"
)

const checkTypeRoutes = "routes.table"

// Snapshot is the read side of a route table.
type Snapshot interface {
	Len() int
	LoadedAt() time.Time
}

// Checker warns when no channel is routed.
type Checker struct {
	table Snapshot
}

// NewChecker creates a route table checker.
func NewChecker(table Snapshot) *Checker {
	return &Checker{table: table}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if err := ctx.Err(); err != nil || c.table == nil {
		return []healthcheck.CheckResult{}
	}
	n := c.table.Len()
	item := healthcheck.CheckResult{
		ID:       checkTypeRoutes,
		Type:     checkTypeRoutes,
		Status:   healthcheck.StatusOK,
		Summary:  fmt.Sprintf("%d channel(s) routed.", n),
		Metadata: map[string]any{"channels": n},
	}
	if loaded := c.table.LoadedAt(); !loaded.IsZero() {
		item.Metadata["loaded_at"] = loaded.UTC().Format(time.RFC3339)
	}
	if n == 0 {
		item.Status = healthcheck.StatusWarn
		item.Summary = "No channel is routed; every post will be ignored."
	}
	return []healthcheck.CheckResult{item}
}
