package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/routing"
	"github.com/surgiscan/occhealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sessions", h.CheckIn)
	api.GET("/sessions", h.List)
	api.GET("/sessions/:id", h.Get)
	api.POST("/sessions/:id/questionnaire/begin", h.BeginQuestionnaire)
	api.POST("/sessions/:id/questionnaire/complete", h.CompleteQuestionnaire)
	api.POST("/sessions/:id/stations/:station/enter", h.EnterStation)
	api.POST("/sessions/:id/stations/:station/exit", h.ExitStation)
	api.POST("/sessions/:id/cancel", h.Cancel)
}

type checkInRequest struct {
	PatientID     uuid.UUID              `json:"patient_id"`
	ExaminationID uuid.UUID              `json:"examination_id"`
	ExamType      questionnaire.ExamType `json:"exam_type"`
}

func (h *Handler) CheckIn(c echo.Context) error {
	var req checkInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientID == uuid.Nil || req.ExaminationID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and examination_id are required")
	}
	sess, err := h.svc.CheckIn(c.Request().Context(), req.PatientID, req.ExaminationID, req.ExamType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) BeginQuestionnaire(c echo.Context) error {
	return h.transition(c, h.svc.BeginQuestionnaire)
}

func (h *Handler) CompleteQuestionnaire(c echo.Context) error {
	return h.transition(c, h.svc.CompleteQuestionnaire)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Session, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sess, err := fn(c.Request().Context(), id)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) EnterStation(c echo.Context) error {
	id, st, err := sessionAndStation(c)
	if err != nil {
		return err
	}
	sess, err := h.svc.EnterStation(c.Request().Context(), id, st)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

type exitStationRequest struct {
	Results map[string]interface{} `json:"results"`
	Notes   string                 `json:"notes"`
}

func (h *Handler) ExitStation(c echo.Context) error {
	id, st, err := sessionAndStation(c)
	if err != nil {
		return err
	}
	var req exitStationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.ExitStation(c.Request().Context(), id, st, req.Results, req.Notes)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func sessionAndStation(c echo.Context) (uuid.UUID, routing.Station, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, routing.StationNone, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st := routing.Station(c.Param("station"))
	if !routing.Valid(st) {
		return uuid.Nil, routing.StationNone, echo.NewHTTPError(http.StatusBadRequest, "unknown station")
	}
	return id, st, nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "workflow session not found")
	case errors.Is(err, ErrSessionTerminated):
		return echo.NewHTTPError(http.StatusConflict, "session is completed or cancelled")
	case errors.Is(err, ErrStationAlreadyActive):
		return echo.NewHTTPError(http.StatusConflict, "another station visit is still active")
	case errors.Is(err, ErrNoActiveVisit):
		return echo.NewHTTPError(http.StatusConflict, "no active visit for that station")
	case errors.Is(err, ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "session was modified concurrently, reload and retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
