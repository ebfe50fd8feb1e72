package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// printable exports carry inline styles and a print button
	documentCSP = "default-src 'none'; style-src 'unsafe-inline'; script-src 'unsafe-inline'; frame-ancestors 'self'"
)

// SecurityHeaders sets hardening headers on every response. Responses under
// any of documentPrefixes get a CSP that lets a rendered prescription display
// and print.
func SecurityHeaders(documentPrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-XSS-Protection", "0")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// responses carry patient data
			h.Set("Cache-Control", "no-store")

			csp, frame := apiCSP, "DENY"
			path := c.Request().URL.Path
			for _, p := range documentPrefixes {
				if strings.HasPrefix(path, p) {
					csp, frame = documentCSP, "SAMEORIGIN"
					break
				}
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Frame-Options", frame)

			return next(c)
		}
	}
}
