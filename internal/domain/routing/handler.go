package routing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/triage"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/routing/next", h.Next)
}

type nextRequest struct {
	Alerts   []triage.Alert         `json:"alerts"`
	ExamType questionnaire.ExamType `json:"exam_type"`
	Current  Station                `json:"current"`
}

type nextResponse struct {
	Decision
	EstimatedWaitSeconds int `json:"estimated_wait_seconds"`
}

// Next handles POST /routing/next.
func (h *Handler) Next(c echo.Context) error {
	var req nextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Current != StationNone && !Valid(req.Current) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown station")
	}
	d := Next(req.Alerts, req.ExamType, req.Current)
	return c.JSON(http.StatusOK, nextResponse{
		Decision:             d,
		EstimatedWaitSeconds: int(EstimatedWait(d.Next).Seconds()),
	})
}
