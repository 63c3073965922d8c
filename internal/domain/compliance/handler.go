package compliance

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/pkg/date"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(auth.RoleCaregiver, auth.RolePatient)
	api.GET("/treatments/:id/compliance", h.Report, read)
	api.GET("/treatments/:id/compliance.pdf", h.ReportPDF, read)
	api.GET("/treatments/:id/stats", h.Stats, read)

	api.GET("/analytics/compliance", h.Analytics, auth.RequireRole(auth.RoleCaregiver))
}

func (h *Handler) report(c echo.Context) (*Report, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	days := DefaultDays
	if raw := c.QueryParam("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "days must be an integer")
		}
	}
	rep, err := h.svc.Report(c.Request().Context(), id, days)
	if err != nil {
		return nil, httpError(err)
	}
	return rep, nil
}

func (h *Handler) Report(c echo.Context) error {
	rep, err := h.report(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) ReportPDF(c echo.Context) error {
	rep, err := h.report(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, rep); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render report").SetInternal(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="compliance-`+rep.TreatmentID.String()+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *Handler) Stats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.Stats(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// Analytics handles GET /analytics/compliance?start_date&end_date&patient_id.
// Caregivers see their own treatments; admins see all.
func (h *Handler) Analytics(c echo.Context) error {
	ctx := c.Request().Context()
	f := AnalyticsFilter{CreatedBy: auth.OwnerScope(ctx)}
	for name, dst := range map[string]*date.Date{"start_date": &f.From, "end_date": &f.To} {
		if raw := c.QueryParam(name); raw != "" {
			d, err := date.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, name+": "+err.Error())
			}
			*dst = d
		}
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	out, err := h.svc.Analytics(ctx, f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTreatmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidPeriod):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
