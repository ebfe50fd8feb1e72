// Package assembly combines intake data, the curated medicine list and the
// prescriber's identity into an immutable prescription document.
package assembly

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
	"github.com/rxdesk/rxdesk/internal/domain/selection"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// BuildDocument snapshots the session data into a Document. It fails with a
// ValidationError when the doctor's name is blank or nothing was prescribed.
func BuildDocument(patient intake.Patient, symptoms, conditions []string, entries []selection.Entry, doctor Doctor) (*Document, error) {
	doctor.Name = strings.TrimSpace(doctor.Name)
	doctor.Registration = strings.TrimSpace(doctor.Registration)
	if doctor.Name == "" {
		return nil, rx.Required("doctor.name")
	}
	if len(entries) == 0 {
		return nil, rx.Invalid("medicines", "at least one medicine is required")
	}

	meds := make([]Medicine, len(entries))
	for i, en := range entries {
		meds[i] = Medicine{
			Name:        en.Name,
			Dosage:      en.Dosage,
			Timing:      en.Timing,
			Description: en.Description,
			Precautions: en.Precautions,
		}
	}

	return &Document{
		ID:         uuid.New(),
		IssuedAt:   now(),
		Patient:    patient,
		Symptoms:   append([]string{}, symptoms...),
		Conditions: append([]string{}, conditions...),
		Medicines:  meds,
		Doctor:     doctor,
	}, nil
}
