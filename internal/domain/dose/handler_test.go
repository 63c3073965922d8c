package dose

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/validate"
)

func newTestServer(svc *Service, roles ...string) *echo.Echo {
	e := echo.New()
	e.Validator = validate.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), uuid.NewString(), roles...)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)
	return e
}

func request(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RecordAndList(t *testing.T) {
	svc, repo := newTestService()
	tid, _ := repo.addTreatment()
	e := newTestServer(svc, auth.RolePatient)
	base := "/api/v1/treatments/" + tid.String() + "/dose-records"

	rec := request(e, http.MethodPost, base,
		`{"scheduled_time": "2025-03-10T08:00:00Z", "actual_time": "2025-03-10T08:10:00Z", "status": "taken"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"delay_minutes":10`) {
		t.Errorf("expected delay in response, got %s", rec.Body.String())
	}

	rec = request(e, http.MethodGet, base+"?start_date=2025-03-10&end_date=2025-03-10", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"taken"`) {
		t.Errorf("unexpected list %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Errors(t *testing.T) {
	svc, repo := newTestService()
	tid, _ := repo.addTreatment()
	e := newTestServer(svc, auth.RoleCaregiver)
	base := "/api/v1/treatments/" + tid.String() + "/dose-records"

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad status", http.MethodPost, base, `{"scheduled_time": "2025-03-10T08:00:00Z", "status": "eaten"}`, http.StatusBadRequest},
		{"missing time", http.MethodPost, base, `{"status": "taken"}`, http.StatusBadRequest},
		{"bad date", http.MethodGet, base + "?start_date=10/03/2025", "", http.StatusBadRequest},
		{"inverted range", http.MethodGet, base + "?start_date=2025-03-10&end_date=2025-03-01", "", http.StatusBadRequest},
		{"unknown treatment", http.MethodGet, "/api/v1/treatments/" + uuid.NewString() + "/dose-records", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := request(e, tt.method, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
