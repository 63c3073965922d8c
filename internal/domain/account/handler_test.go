package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/internal/platform/auth"
	"github.com/pillcare/pillcare/internal/platform/validate"
)

// newTestServer mounts the handler behind the real JWT middleware.
func newTestServer(env *testEnv) *echo.Echo {
	e := echo.New()
	e.Validator = validate.New()
	api := e.Group("/api/v1")
	api.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      env.tokens,
		Revocations: env.revoked,
		Users:       env.svc,
		Skipper:     auth.AuthSkipper,
		Logger:      zerolog.Nop(),
	}))
	NewHandler(env.svc).RegisterRoutes(api)
	return e
}

func call(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SessionFlow(t *testing.T) {
	env := newTestEnv(t)
	e := newTestServer(env)

	rec := call(e, http.MethodPost, "/api/v1/auth/register", "",
		`{"email": "ana@example.com", "name": "Ana", "password": "s3cret-pass", "confirm_password": "s3cret-pass"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "hashed_password") {
		t.Error("password hash must not be serialised")
	}

	rec = call(e, http.MethodPost, "/api/v1/auth/login", "", `{"email": "ana@example.com", "password": "s3cret-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login LoginResponse
	json.Unmarshal(rec.Body.Bytes(), &login)
	if login.TokenType != "bearer" || login.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", login)
	}

	if rec := call(e, http.MethodGet, "/api/v1/auth/me", login.AccessToken, ""); rec.Code != http.StatusOK {
		t.Errorf("me: expected 200, got %d", rec.Code)
	}
	rec = call(e, http.MethodPut, "/api/v1/auth/me", login.AccessToken, `{"language": "en"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"language":"en"`) {
		t.Errorf("update me: unexpected %d %s", rec.Code, rec.Body.String())
	}

	if rec := call(e, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if rec := call(e, http.MethodGet, "/api/v1/auth/me", login.AccessToken, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected revoked token to be rejected, got %d", rec.Code)
	}
}

func TestHandler_Errors(t *testing.T) {
	env := newTestEnv(t)
	e := newTestServer(env)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"short password", "/api/v1/auth/register", `{"email": "a@example.com", "name": "A", "password": "short", "confirm_password": "short"}`, http.StatusBadRequest},
		{"mismatch", "/api/v1/auth/register", `{"email": "a@example.com", "name": "A", "password": "s3cret-pass", "confirm_password": "other-pass"}`, http.StatusBadRequest},
		{"admin self-signup", "/api/v1/auth/register", `{"email": "a@example.com", "name": "A", "password": "s3cret-pass", "confirm_password": "s3cret-pass", "role": "admin"}`, http.StatusBadRequest},
		{"bad login", "/api/v1/auth/login", `{"email": "nobody@example.com", "password": "x"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := call(e, http.MethodPost, tt.target, "", tt.body); rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	if rec := call(e, http.MethodGet, "/api/v1/auth/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestHandler_AdminUsers(t *testing.T) {
	env := newTestEnv(t)
	e := newTestServer(env)
	ctx := context.Background()

	admin, _ := env.svc.CreateAdmin(ctx, "root@example.com", "Root", "admin-pass")
	user, _ := env.svc.Register(ctx, registerReq("ana@example.com"))
	adminTok, _ := env.tokens.Issue(admin.ID.String(), admin.Email, auth.RoleAdmin)
	userTok, _ := env.tokens.Issue(user.ID.String(), user.Email, auth.RoleCaregiver)

	rec := call(e, http.MethodGet, "/api/v1/auth/users", adminTok.AccessToken, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("unexpected user list %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(e, http.MethodGet, "/api/v1/auth/users", userTok.AccessToken, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for caregiver, got %d", rec.Code)
	}
	rec = call(e, http.MethodPut, "/api/v1/auth/users/"+user.ID.String()+"/activate", adminTok.AccessToken, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"is_active":false`) {
		t.Errorf("unexpected toggle %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(e, http.MethodGet, "/api/v1/auth/me", userTok.AccessToken, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected deactivated user's live token to be rejected, got %d", rec.Code)
	}
}
