package treatment

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/middleware"
	"github.com/pillcare/pillcare/internal/platform/validate"
	"github.com/pillcare/pillcare/pkg/date"
	"github.com/pillcare/pillcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(auth.RoleCaregiver, auth.RolePatient)
	api.GET("/treatments", h.List, read)
	api.GET("/treatments/:id", h.Get, read)
	api.GET("/treatments/patient/:patient_id/active", h.ListActiveByPatient, read)
	api.GET("/patients/:id/treatments", h.ListByPatient, read)

	write := auth.RequireRole(auth.RoleCaregiver)
	api.POST("/treatments", h.Create, write)
	api.PUT("/treatments/:id", h.Update, write)
	api.DELETE("/treatments/:id", h.Cancel, write)
	api.POST("/treatments/:id/activate", h.Activate, write)
	api.POST("/treatments/:id/suspend", h.Suspend, write)
	api.POST("/treatments/:id/complete", h.Complete, write)
	api.GET("/treatments/expiring", h.Expiring, write)
	api.GET("/treatments/dashboard/summary", h.Dashboard, write)
	api.POST("/treatments/bulk/create", h.BulkCreate, write)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	if err := checkSchedule(req.StartDate, req.EndDate, req.DurationDays); err != nil {
		return err
	}
	t, err := h.svc.Create(c.Request().Context(), &req, auth.CallerID(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f Filter
	var err error
	if f.PatientID, err = optionalID(c, "patient_id"); err != nil {
		return err
	}
	if f.MedicationID, err = optionalID(c, "medication_id"); err != nil {
		return err
	}
	if v := c.QueryParam("status"); v != "" {
		s := Status(v)
		f.Status = &s
	}
	ctx := c.Request().Context()
	items, total, err := h.svc.Query(ctx, auth.CallerID(ctx), f, pg.Skip, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.Query(ctx, auth.CallerID(ctx), Filter{PatientID: &id}, pg.Skip, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		return echo.NewHTTPError(http.StatusBadRequest, "end_date must be after start_date")
	}
	t, err := h.svc.Update(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "treatment cancelled"})
}

func (h *Handler) Activate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Suspend(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	reason := middleware.SanitizeString(c.QueryParam("reason"))
	if reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}
	t, err := h.svc.Suspend(c.Request().Context(), id, reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.Complete(c.Request().Context(), id, middleware.SanitizeString(c.QueryParam("notes")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListActiveByPatient(c echo.Context) error {
	id, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListActiveByPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Treatment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Expiring(c echo.Context) error {
	days := 7
	if v := c.QueryParam("days_ahead"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days_ahead must be a non-negative integer")
		}
		days = n
	}
	ctx := c.Request().Context()
	items, err := h.svc.Expiring(ctx, auth.OwnerScope(ctx), days)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Treatment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	sum, err := h.svc.DashboardSummary(ctx, auth.OwnerScope(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) BulkCreate(c echo.Context) error {
	var reqs []CreateRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a list of treatments")
	}
	if len(reqs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one treatment is required")
	}
	for i := range reqs {
		if err := validate.Check(c, &reqs[i]); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("item %d: %s", i, message(err)))
		}
		if err := checkSchedule(reqs[i].StartDate, reqs[i].EndDate, reqs[i].DurationDays); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("item %d: %s", i, message(err)))
		}
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.BulkCreate(ctx, reqs, auth.CallerID(ctx)))
}

// checkSchedule requires end after start and a duration within one day of
// the inclusive date span.
func checkSchedule(start, end date.Date, durationDays int) error {
	if !end.After(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "end_date must be after start_date")
	}
	span := start.DaysUntil(end) + 1
	if diff := durationDays - span; diff > 1 || diff < -1 {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("duration_days %d does not match the %d-day date range", durationDays, span))
	}
	return nil
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func message(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}

func httpError(err error) error {
	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrMedicationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &conflict), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidDosage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
