package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"10MB", 10 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{"", 1 << 20},
		{"invalid", 1 << 20},
		{"-5", 1 << 20},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func postContext(body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/treatments", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	c, _ := postContext(strings.NewReader(`{"dosage":"5mg"}`))

	called := false
	err := BodyLimit("1M")(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if len(b) == 0 {
			t.Error("expected non-empty body")
		}
		called = true
		return c.NoContent(http.StatusCreated)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestBodyLimit_RejectsOnContentLength(t *testing.T) {
	c, _ := postContext(bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))

	err := BodyLimit("1K")(func(c echo.Context) error {
		t.Error("handler should not be called when body exceeds limit")
		return nil
	})(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 HTTPError, got %v", err)
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	c, _ := postContext(bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	c.Request().ContentLength = -1

	err := BodyLimit("512")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 HTTPError, got %v", err)
	}
}

func TestBodyLimit_SkipsEmptyBody(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/api/v1/patients")
	called := false
	BodyLimit("1")(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if !called {
		t.Error("expected handler to be called for GET with no body")
	}
}
