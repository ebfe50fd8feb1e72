package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"clean", "/api/v1/sessions/abc", "", http.StatusOK},
		{"encoded traversal", "/api/v1/exports/%2e%2e/secret", "", http.StatusBadRequest},
		{"null byte in query", "/api/v1/exports?session_id=a%00b", "", http.StatusBadRequest},
		{"script in query", "/api/v1/exports?session_id=%3Cscript%3E", "", http.StatusBadRequest},
		{"oversized header", "/", strings.Repeat("x", maxHeaderValueSize+1), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Note", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := Sanitize(zerolog.Nop())(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
