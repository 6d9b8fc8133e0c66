package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes read-only visibility into dispatched notifications so
// reception staff can confirm a handoff alert actually went out.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications/stats", h.Stats)
	api.GET("/notifications/:id", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.dispatcher.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"by_status": h.dispatcher.Stats(),
	})
}
