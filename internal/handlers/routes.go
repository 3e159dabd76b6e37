package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tgmirror/internal/channel"
)

// RouteSnapshot is the read side of the route table.
type RouteSnapshot interface {
	List() []channel.ChannelRoute
	Lookup(id channel.ChannelID) ([]channel.DestinationEndpoint, bool)
	LoadedAt() time.Time
}

// RouteReloader re-reads the configured routes source.
type RouteReloader interface {
	Reload(ctx context.Context) (int, error)
}

// RoutesHandler exposes the route table. Webhook tokens never leave the process.
type RoutesHandler struct {
	logger   *slog.Logger
	table    RouteSnapshot
	reloader RouteReloader
}

type EndpointView struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type RouteView struct {
	ChannelID channel.ChannelID `json:"channel_id"`
	Endpoints []EndpointView    `json:"endpoints"`
}

type ListRoutesResponse struct {
	Items    []RouteView `json:"items"`
	LoadedAt time.Time   `json:"loaded_at"`
}

type ReloadRoutesResponse struct {
	Channels int `json:"channels"`
}

func NewRoutesHandler(log *slog.Logger, table RouteSnapshot, reloader RouteReloader) *RoutesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoutesHandler{
		logger:   log.With(slog.String("handler", "routes")),
		table:    table,
		reloader: reloader,
	}
}

func (h *RoutesHandler) Register(e *echo.Echo) {
	group := e.Group("/routes")
	group.GET("", h.ListRoutes)
	group.GET("/:channel_id", h.GetRoute)
	group.POST("/reload", h.ReloadRoutes)
}

// ListRoutes godoc
// @Summary List routes
// @Description List every routed channel with redacted webhook URLs
// @Tags routes
// @Success 200 {object} ListRoutesResponse
// @Router /routes [get]
func (h *RoutesHandler) ListRoutes(c echo.Context) error {
	routes := h.table.List()
	items := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		items = append(items, routeView(r.ChannelID, r.Endpoints))
	}
	return c.JSON(http.StatusOK, ListRoutesResponse{Items: items, LoadedAt: h.table.LoadedAt()})
}

// GetRoute godoc
// @Summary Get route
// @Description Get the endpoints of one channel
// @Tags routes
// @Param channel_id path string true "Channel ID"
// @Success 200 {object} RouteView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /routes/{channel_id} [get]
func (h *RoutesHandler) GetRoute(c echo.Context) error {
	id, err := channel.ParseChannelID(c.Param("channel_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid channel id")
	}
	endpoints, ok := h.table.Lookup(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "channel is not routed")
	}
	return c.JSON(http.StatusOK, routeView(id, endpoints))
}

// ReloadRoutes godoc
// @Summary Reload routes
// @Description Re-read the routes source; an invalid source keeps the current table
// @Tags routes
// @Success 200 {object} ReloadRoutesResponse
// @Failure 422 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Router /routes/reload [post]
func (h *RoutesHandler) ReloadRoutes(c echo.Context) error {
	if h.reloader == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "routes reload not configured")
	}
	n, err := h.reloader.Reload(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, ReloadRoutesResponse{Channels: n})
}

func routeView(id channel.ChannelID, endpoints []channel.DestinationEndpoint) RouteView {
	view := RouteView{ChannelID: id, Endpoints: make([]EndpointView, 0, len(endpoints))}
	for _, ep := range endpoints {
		view.Endpoints = append(view.Endpoints, EndpointView{
			URL:       ep.Redacted(),
			Name:      ep.Name,
			AvatarURL: ep.AvatarURL,
		})
	}
	return view
}
