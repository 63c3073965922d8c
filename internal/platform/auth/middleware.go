package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	UserRolesKey   contextKey = "user_roles"
	UserEmailKey   contextKey = "user_email"
	TokenIDKey     contextKey = "token_id"
	TokenExpiryKey contextKey = "token_expiry"
)

// ErrUnknownUser is returned by a UserStatus for a subject that no longer
// exists.
var ErrUnknownUser = errors.New("unknown user")

// UserStatus reports whether the subject of a valid token may still use
// the API. Deactivated accounts are rejected on every request, not only at
// login.
type UserStatus interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

type JWTConfig struct {
	Issuer      *TokenIssuer
	Revocations RevocationStore
	Users       UserStatus
	Skipper     echomw.Skipper
	Logger      zerolog.Logger
}

// JWTMiddleware authenticates bearer tokens and stores the caller's
// identity on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := cfg.Issuer.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
			}

			ctx := c.Request().Context()
			if cfg.Revocations != nil && claims.ID != "" {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Error().Err(err).Str("jti", claims.ID).Msg("revocation lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
				}
			}

			if cfg.Users != nil {
				active, err := cfg.Users.IsActive(ctx, claims.Subject)
				switch {
				case errors.Is(err, ErrUnknownUser):
					return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
				case err != nil:
					cfg.Logger.Error().Err(err).Str("user_id", claims.Subject).Msg("user status lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
				case !active:
					return echo.NewHTTPError(http.StatusBadRequest, "inactive user")
				}
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRolesKey, claims.Roles)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = context.WithValue(ctx, TokenIDKey, claims.ID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, TokenExpiryKey, claims.ExpiresAt.Time)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func TokenIDFromContext(ctx context.Context) string {
	jti, _ := ctx.Value(TokenIDKey).(string)
	return jti
}

func TokenExpiryFromContext(ctx context.Context) time.Time {
	exp, _ := ctx.Value(TokenExpiryKey).(time.Time)
	return exp
}

// WithIdentity returns a context carrying the given caller. Useful for
// CLI paths and tests that bypass the HTTP middleware.
func WithIdentity(ctx context.Context, userID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRolesKey, roles)
}

// CallerID parses the authenticated user id. It returns uuid.Nil when the
// request carries no valid identity.
func CallerID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// OwnerScope returns the caller id for ownership-scoped listings, or nil
// for admins, who see every caregiver's rows.
func OwnerScope(ctx context.Context) *uuid.UUID {
	if IsAdmin(ctx) {
		return nil
	}
	id := CallerID(ctx)
	return &id
}

func IsAdmin(ctx context.Context) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
