package account

import (
	"errors"
	"net/http"

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

// RegisterRoutes mounts /auth. Register and login are listed as public
// paths in the auth skipper.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/me", h.Me)
	g.PUT("/me", h.UpdateMe)
	g.POST("/change-password", h.ChangePassword)
	g.POST("/logout", h.Logout)
	g.GET("/verify-token", h.VerifyToken)

	admin := auth.RequireRole(auth.RoleAdmin)
	g.GET("/users", h.ListUsers, admin)
	g.PUT("/users/:id/activate", h.ToggleActive, admin)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.Register(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func caller(c echo.Context) (uuid.UUID, error) {
	id := auth.CallerID(c.Request().Context())
	if id == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	return id, nil
}

func (h *Handler) Me(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.Update(c.Request().Context(), id, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, &req); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) Logout(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Logout(ctx, auth.TokenIDFromContext(ctx), id, auth.TokenExpiryFromContext(ctx)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) VerifyToken(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":   true,
		"user_id": id,
		"roles":   auth.RolesFromContext(c.Request().Context()),
	})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Skip, pg.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ToggleActive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	u, err := h.svc.ToggleActive(ctx, auth.CallerID(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrInactive),
		errors.Is(err, ErrWrongPassword), errors.Is(err, ErrSelfDeactivate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
