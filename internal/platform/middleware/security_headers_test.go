package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveWithHeaders(path string) *httptest.ResponseRecorder {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
	rec := c.Response().Writer.(*httptest.ResponseRecorder)
	SecurityHeaders("/api/v1/exports/")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	return rec
}

func TestSecurityHeaders_API(t *testing.T) {
	rec := serveWithHeaders("/api/v1/sessions")
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": apiCSP,
		"Cache-Control":           "no-store",
		"Referrer-Policy":         "no-referrer",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestSecurityHeaders_DocumentDownloads(t *testing.T) {
	rec := serveWithHeaders("/api/v1/exports/123")
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "style-src 'unsafe-inline'") {
		t.Errorf("expected document CSP, got %q", rec.Header().Get("Content-Security-Policy"))
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Errorf("expected SAMEORIGIN, got %q", rec.Header().Get("X-Frame-Options"))
	}
}
