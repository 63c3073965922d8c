package treatment

import (
	"context"
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

func newTestServer(f *fixture, roles ...string) *echo.Echo {
	e := echo.New()
	e.Validator = validate.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), f.caregiver.String(), roles...)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(f.svc).RegisterRoutes(api)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) body(overrides map[string]interface{}) string {
	m := map[string]interface{}{
		"patient_id":    f.patient.String(),
		"medication_id": f.medication.String(),
		"dosage":        "500mg",
		"frequency":     3,
		"duration_days": 10,
		"start_date":    "2025-03-01",
		"end_date":      "2025-03-10",
	}
	for k, v := range overrides {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func TestHandler_Create(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)

	rec := do(e, http.MethodPost, "/api/v1/treatments", f.body(nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Treatment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusActive || got.ID == uuid.Nil {
		t.Errorf("unexpected treatment %+v", got)
	}
	if got.StartDate.String() != "2025-03-01" {
		t.Errorf("expected start_date 2025-03-01, got %s", got.StartDate)
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)

	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"frequency too high", map[string]interface{}{"frequency": 25}},
		{"duration zero", map[string]interface{}{"duration_days": 0}},
		{"empty dosage", map[string]interface{}{"dosage": ""}},
		{"blank dosage", map[string]interface{}{"dosage": "   "}},
		{"end before start", map[string]interface{}{"end_date": "2025-02-20"}},
		{"duration mismatch", map[string]interface{}{"duration_days": 30}},
		{"bad date", map[string]interface{}{"start_date": "03/01/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/treatments", f.body(tt.overrides))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_CreateMissingPatient(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)

	rec := do(e, http.MethodPost, "/api/v1/treatments", f.body(map[string]interface{}{"patient_id": uuid.New().String()}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_CreateForbiddenForPatientRole(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RolePatient)

	rec := do(e, http.MethodPost, "/api/v1/treatments", f.body(nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)

	if rec := do(e, http.MethodGet, "/api/v1/treatments/"+uuid.New().String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/treatments/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_SuspendAndComplete(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)
	tr := f.create(t)
	base := "/api/v1/treatments/" + tr.ID.String()

	if rec := do(e, http.MethodPost, base+"/suspend", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without reason, got %d", rec.Code)
	}

	rec := do(e, http.MethodPost, base+"/suspend?reason=side+effects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, base+"/complete?notes=resolved", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Treatment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusCompleted || got.Notes == nil ||
		*got.Notes != "Suspendido: side effects\nCompletado: resolved" {
		t.Errorf("unexpected treatment after complete: %+v", got)
	}
}

func TestHandler_DeleteCancels(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)
	tr := f.create(t)

	rec := do(e, http.MethodDelete, "/api/v1/treatments/"+tr.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.repo.items[tr.ID].Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", f.repo.items[tr.ID].Status)
	}
}

func TestHandler_Update(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)
	tr := f.create(t)

	rec := do(e, http.MethodPut, "/api/v1/treatments/"+tr.ID.String(), `{"dosage":"10mg"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.repo.items[tr.ID].Dosage != "10mg" || f.repo.items[tr.ID].Frequency != 3 {
		t.Errorf("unexpected stored treatment %+v", f.repo.items[tr.ID])
	}

	rec = do(e, http.MethodPut, "/api/v1/treatments/"+tr.ID.String(), `{"status":"paused"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestHandler_ListFilters(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RolePatient)
	a := f.create(t)
	b := f.create(t)
	f.svc.Suspend(context.Background(), b.ID, "pause")

	rec := do(e, http.MethodGet, "/api/v1/treatments?status=active&patient_id="+f.patient.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data  []Treatment `json:"data"`
		Total int         `json:"total"`
		Limit int         `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 || len(page.Data) != 1 || page.Data[0].ID != a.ID {
		t.Errorf("unexpected page %+v", page)
	}
	if page.Limit != 100 {
		t.Errorf("expected default limit 100, got %d", page.Limit)
	}

	if rec := do(e, http.MethodGet, "/api/v1/treatments?patient_id=nope", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad patient_id, got %d", rec.Code)
	}
}

func TestHandler_ExpiringAndDashboard(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)
	f.create(t)

	rec := do(e, http.MethodGet, "/api/v1/treatments/expiring?days_ahead=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Treatment
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 expiring treatment, got %d", len(items))
	}

	if rec := do(e, http.MethodGet, "/api/v1/treatments/expiring?days_ahead=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/treatments/dashboard/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sum DashboardSummary
	json.Unmarshal(rec.Body.Bytes(), &sum)
	if sum.ActiveTreatments != 1 || sum.ExpiringSoon != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestHandler_BulkCreate(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)

	body := "[" + f.body(nil) + "," + f.body(map[string]interface{}{"medication_id": uuid.New().String()}) + "]"
	rec := do(e, http.MethodPost, "/api/v1/treatments/bulk/create", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res BulkResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Created != 1 || res.Failed != 1 {
		t.Errorf("unexpected bulk result %+v", res)
	}

	invalid := "[" + f.body(map[string]interface{}{"frequency": 0}) + "]"
	if rec := do(e, http.MethodPost, "/api/v1/treatments/bulk/create", invalid); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid item, got %d", rec.Code)
	}
}

func TestHandler_PatientTreatments(t *testing.T) {
	f := newFixture()
	e := newTestServer(f, auth.RoleCaregiver)
	f.create(t)

	rec := do(e, http.MethodGet, "/api/v1/patients/"+f.patient.String()+"/treatments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/v1/treatments/patient/"+f.patient.String()+"/active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Treatment
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 active treatment, got %d", len(items))
	}
}
