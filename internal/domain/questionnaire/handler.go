package questionnaire

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgiscan/occhealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/questionnaires", h.Create)
	api.GET("/questionnaires", h.List)
	api.GET("/questionnaires/:id", h.Get)
	api.GET("/questionnaires/:id/score", h.Score)
	api.GET("/questionnaires/:id/sections/:section/validation", h.Validate)
	api.PUT("/questionnaires/:id/sections/:section", h.SaveSection)
	api.POST("/questionnaires/validate-section", h.ValidatePayload)
}

type createRequest struct {
	PatientID     uuid.UUID `json:"patient_id"`
	ExaminationID uuid.UUID `json:"examination_id"`
	ExamType      ExamType  `json:"exam_type"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientID == uuid.Nil || req.ExaminationID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and examination_id are required")
	}
	rec, err := h.svc.Create(c.Request().Context(), req.PatientID, req.ExaminationID, req.ExamType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return recordError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type saveSectionRequest struct {
	Data    SectionData `json:"data"`
	Actor   string      `json:"actor"`
	Version int         `json:"version"`
}

type saveSectionResponse struct {
	Record     *Record       `json:"record"`
	Validation SectionResult `json:"validation"`
}

func (h *Handler) SaveSection(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sec := Section(c.Param("section"))

	var req saveSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Actor == "" {
		req.Actor = "patient"
	}

	rec, res, err := h.svc.SaveSection(c.Request().Context(), id, sec, req.Data, req.Actor, req.Version)
	if err != nil {
		return recordError(err)
	}
	return c.JSON(http.StatusOK, saveSectionResponse{Record: rec, Validation: res})
}

func (h *Handler) Validate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.Validate(c.Request().Context(), id, Section(c.Param("section")))
	if err != nil {
		return recordError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type validatePayloadRequest struct {
	Section  Section     `json:"section"`
	Data     SectionData `json:"data"`
	ExamType ExamType    `json:"exam_type"`
}

// ValidatePayload validates raw section data without touching storage, for
// client-side pre-flight checks while the patient is still typing.
func (h *Handler) ValidatePayload(c echo.Context) error {
	var req validatePayloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res := ValidateSection(req.Section, req.Data, req.ExamType, time.Now().UTC())
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Score(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	score, err := h.svc.Score(c.Request().Context(), id)
	if err != nil {
		return recordError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"completion": score})
}

func recordError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "questionnaire record not found")
	case errors.Is(err, ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "record was modified concurrently, reload and retry")
	case errors.Is(err, ErrRecordCompleted):
		return echo.NewHTTPError(http.StatusConflict, "record is completed and can no longer be edited")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
