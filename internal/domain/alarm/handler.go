package alarm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(auth.RoleCaregiver, auth.RolePatient)
	api.GET("/treatments/:id/alarms", h.List, read)

	write := auth.RequireRole(auth.RoleCaregiver)
	api.POST("/treatments/:id/alarms", h.Create, write)
	api.POST("/treatments/:id/alarms/sync", h.Sync, write)
	api.PUT("/treatments/:id/alarms/:alarm_id", h.Update, write)
	api.DELETE("/treatments/:id/alarms/:alarm_id", h.Delete, write)
}

func (h *Handler) List(c echo.Context) error {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.List(c.Request().Context(), tid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c echo.Context) error {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req CreateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), tid, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Update(c echo.Context) error {
	tid, id, err := parseIDs(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Update(c.Request().Context(), tid, id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	tid, id, err := parseIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), tid, id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "alarm deleted"})
}

// Sync handles POST /treatments/:id/alarms/sync with a JSON array body.
func (h *Handler) Sync(c echo.Context) error {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var reqs []CreateRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "body must be a JSON array of alarms")
	}
	for i := range reqs {
		if err := validate.Check(c, &reqs[i]); err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("alarm %d: %v", i, he.Message))
			}
			return err
		}
	}
	items, err := h.svc.Sync(c.Request().Context(), tid, reqs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func parseIDs(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	tid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	id, err := uuid.Parse(c.Param("alarm_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid alarm id")
	}
	return tid, id, nil
}

func httpError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTreatmentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
