package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes mounts the identity endpoints. The supplied middleware is
// the per-caller rate limit required for identity validation.
func (h *Handler) RegisterRoutes(api *echo.Group, limit echo.MiddlewareFunc) {
	api.POST("/identity/validate", h.Validate, limit)
}

type validateRequest struct {
	IDNumber string `json:"id_number"`
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	BirthDate string `json:"birth_date,omitempty"`
	Age       int    `json:"age,omitempty"`
	Sex       Sex    `json:"sex,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Validate handles POST /identity/validate.
func (h *Handler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := Parse(req.IDNumber, time.Now().UTC())
	if err != nil {
		var ierr *InvalidIdentityError
		if errors.As(err, &ierr) {
			// Invalid numbers are an expected outcome, not a server error.
			return c.JSON(http.StatusOK, validateResponse{Valid: false, Reason: ierr.Reason})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, validateResponse{
		Valid:     true,
		BirthDate: id.BirthDate.Format("2006-01-02"),
		Age:       id.Age,
		Sex:       id.Sex,
	})
}
