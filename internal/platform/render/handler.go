package render

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
)

// GeneratePath renders a prescription from a flat, stateless request.
const GeneratePath = "/api/prescription/generate"

// GenerateRequest is the flat document description accepted by GeneratePath.
type GenerateRequest struct {
	PatientName        string           `json:"patient_name"`
	PatientAge         int              `json:"patient_age"`
	PatientGender      string           `json:"patient_gender"`
	Symptoms           []string         `json:"symptoms"`
	HealthConditions   []string         `json:"health_conditions"`
	Medicines          []PrescribedItem `json:"medicines"`
	DoctorName         string           `json:"doctor_name"`
	DoctorRegistration string           `json:"doctor_registration,omitempty"`
}

type PrescribedItem struct {
	MedicineName string `json:"medicine_name"`
	Dosage       string `json:"dosage"`
	Timing       string `json:"timing"`
	Duration     string `json:"duration,omitempty"`
}

// Document validates the request and converts it to a Document.
func (r GenerateRequest) Document() (*assembly.Document, error) {
	if strings.TrimSpace(r.PatientName) == "" {
		return nil, rx.Required("patient_name")
	}
	if r.PatientAge < 0 || r.PatientAge > 150 {
		return nil, rx.Invalid("patient_age", "must be between 0 and 150")
	}
	if strings.TrimSpace(r.DoctorName) == "" {
		return nil, rx.Required("doctor_name")
	}
	if len(r.Medicines) == 0 {
		return nil, rx.Invalid("medicines", "at least one medicine is required")
	}
	meds := make([]assembly.Medicine, 0, len(r.Medicines))
	for i, m := range r.Medicines {
		if strings.TrimSpace(m.MedicineName) == "" {
			return nil, rx.Required("medicines[" + strconv.Itoa(i) + "].medicine_name")
		}
		meds = append(meds, assembly.Medicine{
			Name:     strings.TrimSpace(m.MedicineName),
			Dosage:   m.Dosage,
			Timing:   m.Timing,
			Duration: m.Duration,
		})
	}
	return &assembly.Document{
		ID:       uuid.New(),
		IssuedAt: now(),
		Patient: intake.Patient{
			Name:   strings.TrimSpace(r.PatientName),
			Age:    strconv.Itoa(r.PatientAge),
			Gender: r.PatientGender,
		},
		Symptoms:   append([]string{}, r.Symptoms...),
		Conditions: append([]string{}, r.HealthConditions...),
		Medicines:  meds,
		Doctor: assembly.Doctor{
			Name:         strings.TrimSpace(r.DoctorName),
			Registration: strings.TrimSpace(r.DoctorRegistration),
		},
	}, nil
}

// GenerateResponse carries the rendered page.
type GenerateResponse struct {
	Success          bool   `json:"success"`
	PrescriptionHTML string `json:"prescription_html"`
}

// Handler serves stateless rendering.
type Handler struct {
	html   *HTMLRenderer
	logger zerolog.Logger
}

func NewHandler(opts Options, logger zerolog.Logger) *Handler {
	return &Handler{html: NewHTMLRenderer(opts), logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST(GeneratePath, h.Generate)
}

func (h *Handler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	doc, err := req.Document()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	page, err := h.html.RenderString(doc)
	if err != nil {
		h.logger.Error().Err(err).Msg("generate prescription")
		return echo.NewHTTPError(http.StatusInternalServerError, "Error generating prescription: "+err.Error())
	}
	return c.JSON(http.StatusOK, GenerateResponse{Success: true, PrescriptionHTML: page})
}
