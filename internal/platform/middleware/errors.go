package middleware

import (
	"github.com/labstack/echo/v4"
)

// errorBody mirrors the shape of echo's default HTTPError response so that
// clients see one error format whether a handler or a middleware rejected
// the request.
type errorBody struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(c echo.Context, status int, message string) error {
	rid, _ := c.Get(RequestIDKey).(string)
	return c.JSON(status, errorBody{Message: message, RequestID: rid})
}
