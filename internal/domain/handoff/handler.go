package handoff

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/session"
)

type Handler struct {
	coord *Coordinator
}

func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/handoffs", h.Attempt)
}

type attemptRequest struct {
	RecordID  uuid.UUID `json:"record_id"`
	SessionID uuid.UUID `json:"session_id"`
}

type blockedResponse struct {
	Blocked  bool      `json:"blocked"`
	Blockers []Blocker `json:"blockers"`
}

// Attempt handles POST /handoffs.
func (h *Handler) Attempt(c echo.Context) error {
	var req attemptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RecordID == uuid.Nil || req.SessionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id and session_id are required")
	}

	payload, err := h.coord.Attempt(c.Request().Context(), req.RecordID, req.SessionID)
	if err != nil {
		var blocked *BlockedError
		switch {
		case errors.As(err, &blocked):
			return c.JSON(http.StatusUnprocessableEntity, blockedResponse{Blocked: true, Blockers: blocked.Blockers})
		case errors.Is(err, questionnaire.ErrNotFound), errors.Is(err, session.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, session.ErrSessionTerminated),
			errors.Is(err, session.ErrNoActiveVisit),
			errors.Is(err, session.ErrVersionConflict),
			errors.Is(err, questionnaire.ErrVersionConflict):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, payload)
}
