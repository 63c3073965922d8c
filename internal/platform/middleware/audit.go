package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/internal/platform/auth"
)

// Audit logs every state-changing call under /api/v1 with the acting
// caregiver, so treatment and patient changes can be traced to a person.
// Reads are not audited.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := methodToAction(req.Method)
			if action == "" || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			resource, resourceID := splitResource(req.URL.Path)
			logger.Info().
				Str("type", "audit").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(req.Context())).
				Str("action", action).
				Str("resource", resource).
				Str("resource_id", resourceID).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Bool("failed", err != nil).
				Msg("caregiver_action")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// splitResource extracts the collection name and the first id-shaped
// segment from an API path:
//
//	/api/v1/treatments/<uuid>/suspend -> treatments, <uuid>
func splitResource(path string) (string, string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	resource := "unknown"
	if len(segments) > 0 && segments[0] != "" {
		resource = segments[0]
	}
	for _, s := range segments[1:] {
		if _, err := uuid.Parse(s); err == nil {
			return resource, s
		}
	}
	return resource, ""
}
