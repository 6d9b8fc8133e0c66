package triage

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
)

type Handler struct {
	records questionnaire.Repository
}

func NewHandler(records questionnaire.Repository) *Handler {
	return &Handler{records: records}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/questionnaires/:id/alerts", h.Alerts)
}

type alertsResponse struct {
	Alerts    []Alert `json:"alerts"`
	Immediate bool    `json:"immediate"`
}

// Alerts handles GET /questionnaires/:id/alerts.
func (h *Handler) Alerts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.records.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, questionnaire.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "questionnaire record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	alerts := Evaluate(rec)
	return c.JSON(http.StatusOK, alertsResponse{Alerts: alerts, Immediate: HasImmediate(alerts)})
}
