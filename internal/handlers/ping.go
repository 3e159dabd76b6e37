package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PingResponse is the liveness payload.
type PingResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// PingHandler answers liveness probes without touching any dependency.
type PingHandler struct {
	logger    *slog.Logger
	startedAt time.Time
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger:    log.With(slog.String("handler", "ping")),
		startedAt: time.Now(),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Ping)
	e.HEAD("/health", h.Head)
}

// Ping godoc
// @Summary Liveness probe
// @Tags system
// @Success 200 {object} PingResponse
// @Router /ping [get]
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, PingResponse{
		Status:        "ok",
		Service:       "tgmirror",
		UptimeSeconds: int64(time.Since(h.startedAt) / time.Second),
	})
}

func (h *PingHandler) Head(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
