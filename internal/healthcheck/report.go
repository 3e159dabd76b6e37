package healthcheck

import (
	"context"
	"time"
)

// Report is the combined result of every registered checker.
type Report struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Aggregator runs a fixed set of checkers in order.
type Aggregator struct {
	checkers []Checker
}

// NewAggregator creates an aggregator. Nil checkers are ignored.
func NewAggregator(checkers ...Checker) *Aggregator {
	items := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			items = append(items, c)
		}
	}
	return &Aggregator{checkers: items}
}

// Run evaluates all checkers and folds their statuses into one.
func (a *Aggregator) Run(ctx context.Context) Report {
	report := Report{Status: StatusOK, Checks: []CheckResult{}, CheckedAt: time.Now().UTC()}
	for _, c := range a.checkers {
		if err := ctx.Err(); err != nil {
			report.Status = StatusUnknown
			break
		}
		report.Checks = append(report.Checks, c.ListChecks(ctx)...)
	}
	for _, item := range report.Checks {
		report.Status = worse(report.Status, item.Status)
	}
	return report
}

func worse(a, b string) string {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusWarn:
		return 1
	case StatusUnknown:
		return 2
	case StatusError:
		return 3
	default:
		return 2
	}
}
