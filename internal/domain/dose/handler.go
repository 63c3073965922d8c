package dose

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/validate"
	"github.com/pillcare/pillcare/pkg/date"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the dose routes. Patients log their own intakes, so
// both roles may write.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	member := auth.RequireRole(auth.RoleCaregiver, auth.RolePatient)
	api.GET("/treatments/:id/dose-records", h.List, member)
	api.POST("/treatments/:id/dose-records", h.Create, member)
}

func (h *Handler) Create(c echo.Context) error {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req RecordRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.Record(c.Request().Context(), tid, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d.toView())
}

func (h *Handler) List(c echo.Context) error {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	start, err := queryDate(c, "start_date")
	if err != nil {
		return err
	}
	end, err := queryDate(c, "end_date")
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), tid, start, end)
	if err != nil {
		return httpError(err)
	}
	out := make([]view, len(items))
	for i, d := range items {
		out[i] = d.toView()
	}
	return c.JSON(http.StatusOK, out)
}

func queryDate(c echo.Context, name string) (*date.Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := date.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+": "+err.Error())
	}
	return &d, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTreatmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
