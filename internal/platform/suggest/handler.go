package suggest

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler exposes a Client as the suggestion search endpoint, so this
// service can itself act as the remote source for another instance.
type Handler struct {
	client Client
	logger zerolog.Logger
}

func NewHandler(client Client, logger zerolog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// RegisterRoutes mounts POST /api/medicines/search on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST(SearchPath, h.Search)
}

func (h *Handler) Search(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.client.Suggest(c.Request().Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Int("symptoms", len(req.Symptoms)).Msg("medicine search failed")
		if errors.Is(err, ErrCircuitOpen) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Error searching medicines: "+err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
