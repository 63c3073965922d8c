package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// RegisterRevocationRoutes mounts POST /auth/revoke, which lets an admin
// cut off a leaked token before it expires.
func RegisterRevocationRoutes(g *echo.Group, store RevocationStore) {
	g.POST("/auth/revoke", handleRevokeToken(store, time.Now), RequireRole(RoleAdmin))
}

// handleRevokeToken revokes one token by jti. Without an expiry the entry is
// kept for an hour.
func handleRevokeToken(store RevocationStore, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeTokenRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.JTI == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
		}
		if req.ExpiresAt.IsZero() {
			req.ExpiresAt = now().Add(time.Hour)
		}
		if err := store.Revoke(c.Request().Context(), req.JTI, req.UserID, req.ExpiresAt); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
