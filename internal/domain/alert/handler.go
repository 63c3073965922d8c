package alert

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	caregiver := auth.RequireRole(auth.RoleCaregiver)
	api.GET("/alerts", h.List, caregiver)
	api.POST("/alerts/read-all", h.ReadAll, caregiver)
	api.POST("/alerts/:id/read", h.Read, caregiver)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	f := Filter{Caregiver: auth.OwnerScope(ctx)}
	if raw := c.QueryParam("unread_only"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unread_only must be true or false")
		}
		f.UnreadOnly = b
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	items, total, err := h.svc.List(ctx, f, pg.Skip, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Read(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.MarkRead(ctx, id, auth.OwnerScope(ctx)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "alert marked as read"})
}

func (h *Handler) ReadAll(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.MarkAllRead(ctx, auth.OwnerScope(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func httpError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
