package medication

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/validate"
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
	api.GET("/medications", h.List, read)
	api.GET("/medications/units", h.Units, read)
	api.GET("/medications/:id", h.Get, read)
	api.GET("/medications/:id/interactions", h.Interactions, read)

	write := auth.RequireRole(auth.RoleCaregiver)
	api.POST("/medications", h.Create, write)
	api.PUT("/medications/:id", h.Update, write)
	api.DELETE("/medications/:id", h.Delete, write)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Search: c.QueryParam("search"), Unit: Unit(c.QueryParam("unit"))}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Skip, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.Update(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "medication deleted"})
}

func (h *Handler) Units(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]Unit{"units": Units})
}

// Interactions handles GET /medications/:id/interactions?with=<id>,<id>.
func (h *Handler) Interactions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var others []uuid.UUID
	for _, raw := range strings.Split(c.QueryParam("with"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		oid, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id in with: "+raw)
		}
		others = append(others, oid)
	}
	found, err := h.svc.Interactions(c.Request().Context(), id, others)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"medication_id":      id,
		"interactions":       found,
		"total_interactions": len(found),
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInUse):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
