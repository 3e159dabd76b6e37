package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tgmirror/internal/journal"
)

type JournalHandler struct {
	logger  *slog.Logger
	journal journal.Journal
}

type ListJournalResponse struct {
	Items []journal.Entry `json:"items"`
}

func NewJournalHandler(log *slog.Logger, j journal.Journal) *JournalHandler {
	if log == nil {
		log = slog.Default()
	}
	return &JournalHandler{
		logger:  log.With(slog.String("handler", "journal")),
		journal: j,
	}
}

func (h *JournalHandler) Register(e *echo.Echo) {
	e.GET("/journal", h.ListJournal)
}

// ListJournal godoc
// @Summary Recent dispatches
// @Description List the most recent journal entries, newest first
// @Tags journal
// @Param limit query int false "Page size (1-500, default 50)"
// @Success 200 {object} ListJournalResponse
// @Failure 400 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /journal [get]
func (h *JournalHandler) ListJournal(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = v
	}
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, journal.ErrUnsupported.Error())
	}
	items, err := h.journal.Recent(c.Request().Context(), journal.ClampLimit(limit))
	if err != nil {
		if errors.Is(err, journal.ErrUnsupported) {
			return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
		}
		h.logger.Error("journal read failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []journal.Entry{}
	}
	return c.JSON(http.StatusOK, ListJournalResponse{Items: items})
}
