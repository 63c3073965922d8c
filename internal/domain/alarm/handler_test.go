package alarm

import (
	"encoding/json"
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

func TestHandler_CRUD(t *testing.T) {
	svc, repo := newTestService()
	tid := repo.addTreatment()
	e := newTestServer(svc, auth.RoleCaregiver)
	base := "/api/v1/treatments/" + tid.String() + "/alarms"

	rec := request(e, http.MethodPost, base, `{"time": "08:15", "description": "with breakfast"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Alarm
	json.Unmarshal(rec.Body.Bytes(), &a)

	rec = request(e, http.MethodPut, base+"/"+a.ID.String(), `{"time": "21:00"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"21:00"`) {
		t.Errorf("unexpected update %d %s", rec.Code, rec.Body.String())
	}

	rec = request(e, http.MethodGet, base, "")
	var list []Alarm
	json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list) != 1 {
		t.Errorf("expected one alarm, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := request(e, http.MethodDelete, base+"/"+a.ID.String(), ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := request(e, http.MethodDelete, base+"/"+a.ID.String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_TimeValidation(t *testing.T) {
	svc, repo := newTestService()
	tid := repo.addTreatment()
	e := newTestServer(svc, auth.RoleCaregiver)
	base := "/api/v1/treatments/" + tid.String() + "/alarms"

	for _, body := range []string{`{"time": "8:00"}`, `{"time": "25:00"}`, `{"time": "08:60"}`, `{}`} {
		if rec := request(e, http.MethodPost, base, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	rec := request(e, http.MethodPost, base+"/sync", `[{"time": "08:00"}, {"time": "noon"}]`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "alarm 1") {
		t.Errorf("expected 400 naming alarm 1, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := request(e, http.MethodPost, base+"/sync", `{"time": "08:00"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-array body, got %d", rec.Code)
	}
}

func TestHandler_Sync(t *testing.T) {
	svc, repo := newTestService()
	tid := repo.addTreatment()
	e := newTestServer(svc, auth.RoleCaregiver)

	rec := request(e, http.MethodPost, "/api/v1/treatments/"+tid.String()+"/alarms/sync",
		`[{"time": "08:00"}, {"time": "14:00", "visual_enabled": false}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list []Alarm
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 2 || list[1].VisualEnabled {
		t.Errorf("unexpected synced alarms %+v", list)
	}

	if rec := request(e, http.MethodPost, "/api/v1/treatments/"+uuid.NewString()+"/alarms/sync", `[]`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown treatment, got %d", rec.Code)
	}
}

func TestHandler_PatientCanOnlyRead(t *testing.T) {
	svc, repo := newTestService()
	tid := repo.addTreatment()
	e := newTestServer(svc, auth.RolePatient)
	base := "/api/v1/treatments/" + tid.String() + "/alarms"

	if rec := request(e, http.MethodGet, base, ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := request(e, http.MethodPost, base, `{"time": "08:00"}`); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
