package route

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// Reloader refreshes a Table from a Source on demand or on a cron schedule.
// A failed load keeps the previous snapshot.
type Reloader struct {
	table  *Table
	source Source
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReloader creates a Reloader.
func NewReloader(log *slog.Logger, table *Table, source Source) *Reloader {
	if log == nil {
		log = slog.Default()
	}
	return &Reloader{
		table:  table,
		source: source,
		logger: log.With(slog.String("component", "routes")),
	}
}

// Reload loads, validates and installs routes, returning how many were installed.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("routes source not configured")
	}
	routes, err := r.source.Load(ctx)
	if err != nil {
		r.logger.Error("routes load failed", slog.Any("error", err))
		return 0, err
	}
	if err := Validate(routes); err != nil {
		r.logger.Error("routes invalid, keeping previous table", slog.Any("error", err))
		return 0, err
	}
	if err := r.table.Replace(routes); err != nil {
		r.logger.Error("routes replace failed", slog.Any("error", err))
		return 0, err
	}
	r.logger.Info("routes loaded", slog.Int("channels", len(routes)))
	return len(routes), nil
}

// Start schedules periodic reloads. An empty schedule disables scheduling.
func (r *Reloader) Start(ctx context.Context, schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("reloader already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_, _ = r.Reload(ctx)
	}); err != nil {
		return fmt.Errorf("parse reload schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("routes reload scheduled", slog.String("schedule", schedule))
	return nil
}

// Stop halts scheduled reloads and waits for a running one to finish.
func (r *Reloader) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
