package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tgmirror/internal/healthcheck"
)

// StatusReporter runs the runtime checks.
type StatusReporter interface {
	Run(ctx context.Context) healthcheck.Report
}

type StatusHandler struct {
	logger   *slog.Logger
	reporter StatusReporter
}

func NewStatusHandler(log *slog.Logger, reporter StatusReporter) *StatusHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatusHandler{
		logger:   log.With(slog.String("handler", "status")),
		reporter: reporter,
	}
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/status", h.GetStatus)
}

// GetStatus godoc
// @Summary Runtime status
// @Description Receiver connections, route table and journal backend checks
// @Tags status
// @Success 200 {object} healthcheck.Report
// @Failure 500 {object} ErrorResponse
// @Router /status [get]
func (h *StatusHandler) GetStatus(c echo.Context) error {
	if h.reporter == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "status reporter not configured")
	}
	return c.JSON(http.StatusOK, h.reporter.Run(c.Request().Context()))
}
