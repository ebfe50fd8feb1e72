package workflow

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
	"github.com/rxdesk/rxdesk/internal/domain/selection"
	"github.com/rxdesk/rxdesk/internal/platform/export"
	"github.com/rxdesk/rxdesk/internal/platform/render"
)

type Handler struct {
	sessions *Registry
}

func NewHandler(sessions *Registry) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/vocabulary", h.Vocabulary)

	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)

	// navigation
	api.POST("/sessions/:id/advance", h.Advance)
	api.POST("/sessions/:id/retreat", h.Retreat)
	api.POST("/sessions/:id/reset", h.Reset)

	// intake
	api.PUT("/sessions/:id/patient", h.SetPatient)
	api.POST("/sessions/:id/symptoms", h.AddSymptom)
	api.DELETE("/sessions/:id/symptoms/:index", h.RemoveSymptom)
	api.POST("/sessions/:id/conditions/toggle", h.ToggleCondition)

	// selection
	api.POST("/sessions/:id/selection/toggle", h.Toggle)
	api.POST("/sessions/:id/selection/update", h.UpdateField)
	api.POST("/sessions/:id/selection/custom", h.AddCustom)
	api.POST("/sessions/:id/selection/remove", h.RemoveEntry)

	// assembly
	api.PUT("/sessions/:id/doctor", h.SetDoctor)
	api.POST("/sessions/:id/document", h.Assemble)
	api.GET("/sessions/:id/document", h.GetDocument)
	api.POST("/sessions/:id/export", h.Export)
}

// -- Request bodies --

type symptomRequest struct {
	Symptom string `json:"symptom"`
}

type conditionRequest struct {
	Condition string `json:"condition"`
}

// nameRequest carries a medicine name in the body; names may contain '/'
// or '..', which do not survive as path segments.
type nameRequest struct {
	Name string `json:"name"`
}

type updateRequest struct {
	Name  string          `json:"name"`
	Field selection.Field `json:"field"`
	Value string          `json:"value"`
}

type customRequest struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
	Timing string `json:"timing"`
}

type exportRequest struct {
	Format string        `json:"format"`
	Action export.Action `json:"action"`
}

type advanceResponse struct {
	Advanced bool     `json:"advanced"`
	Reasons  []string `json:"reasons,omitempty"`
	Session  View     `json:"session"`
}

// -- Sessions --

func (h *Handler) Vocabulary(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{
		"conditions": intake.Conditions,
		"genders":    intake.Genders,
	})
}

func (h *Handler) CreateSession(c echo.Context) error {
	ctl := h.sessions.Create()
	return c.JSON(http.StatusCreated, ctl.Snapshot())
}

func (h *Handler) GetSession(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Navigation --

func (h *Handler) Advance(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	ok, reasons := ctl.Advance()
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	return c.JSON(status, advanceResponse{Advanced: ok, Reasons: reasons, Session: ctl.Snapshot()})
}

func (h *Handler) Retreat(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	if !ctl.Retreat() {
		return echo.NewHTTPError(http.StatusConflict, "already at the first stage")
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) Reset(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	ctl.Reset()
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

// -- Intake --

func (h *Handler) SetPatient(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var p intake.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctl.SetPatient(p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) AddSymptom(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req symptomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctl.AddSymptom(req.Symptom); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) RemoveSymptom(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	if err := ctl.RemoveSymptom(idx); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) ToggleCondition(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req conditionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := ctl.ToggleCondition(req.Condition); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

// -- Selection --

func (h *Handler) Toggle(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := ctl.Toggle(req.Name); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) UpdateField(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctl.UpdateField(req.Name, req.Field, req.Value); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) AddCustom(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req customRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := ctl.AddCustom(req.Name, req.Dosage, req.Timing); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ctl.Snapshot())
}

func (h *Handler) RemoveEntry(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := ctl.RemoveByName(req.Name); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

// -- Assembly --

func (h *Handler) SetDoctor(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var d assembly.Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctl.SetDoctor(d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ctl.Snapshot())
}

func (h *Handler) Assemble(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	doc, err := ctl.Assemble()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) GetDocument(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	doc, err := ctl.Document()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Export(c echo.Context) error {
	ctl, err := h.session(c)
	if err != nil {
		return err
	}
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	format, err := render.ParseFormat(req.Format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Action == "" {
		req.Action = export.ActionPrint
	}
	res, err := ctl.Export(c.Request().Context(), format, req.Action)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Helpers --

func (h *Handler) session(c echo.Context) (*Controller, error) {
	ctl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return nil, httpError(err)
	}
	return ctl, nil
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	var (
		fetchErr  *rx.SuggestionFetchError
		exportErr *rx.ExportError
	)
	switch {
	case rx.IsValidation(err), errors.Is(err, intake.ErrSymptomIndex):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNoDocument), errors.Is(err, selection.ErrUnknownCandidate):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrWrongStage), errors.Is(err, selection.ErrSuggestionsPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &fetchErr), errors.As(err, &exportErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
