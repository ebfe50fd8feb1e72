package intake

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rxdesk/rxdesk/internal/domain/rx"
)

// Conditions is the fixed vocabulary of pre-existing health conditions a
// practitioner can flag during intake, in display order.
var Conditions = []string{
	"Diabetes",
	"Hypertension (High BP)",
	"Hypotension (Low BP)",
	"PCOD/PCOS",
	"Thyroid",
	"Asthma",
	"Arthritis",
	"Gastric Issues",
	"Migraine",
	"Insomnia",
}

// Genders lists the accepted values for Patient.Gender.
var Genders = []string{"Male", "Female", "Other"}

var validConditions = toSet(Conditions)
var validGenders = toSet(Genders)

var ErrSymptomIndex = errors.New("symptom index out of range")

// Patient is the identity block of the intake form. Age is kept as entered
// (a whole number of years) so the document shows exactly what was typed.
type Patient struct {
	Name   string `json:"name"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
}

// Intake holds everything captured in the first stage of a session.
type Intake struct {
	Patient    Patient  `json:"patient"`
	Symptoms   []string `json:"symptoms"`
	Conditions []string `json:"conditions"`
}

// New returns an empty intake.
func New() *Intake {
	return &Intake{Symptoms: []string{}, Conditions: []string{}}
}

// SetPatient replaces the identity block. Age, when given, must be a whole
// number and gender, when given, must be one of Genders. Empty values are
// accepted here; they only block readiness.
func (in *Intake) SetPatient(p Patient) error {
	age := strings.TrimSpace(p.Age)
	if age != "" {
		n, err := strconv.Atoi(age)
		if err != nil || n < 0 || n > 150 {
			return rx.Invalid("patient.age", "must be a whole number of years")
		}
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return rx.Invalid("patient.gender", "must be one of Male, Female, Other")
	}
	in.Patient = Patient{Name: p.Name, Age: age, Gender: p.Gender}
	return nil
}

// AddSymptom appends a trimmed complaint. Duplicates are kept.
func (in *Intake) AddSymptom(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return rx.Required("symptom")
	}
	in.Symptoms = append(in.Symptoms, s)
	return nil
}

// RemoveSymptom drops the complaint at index i, keeping the order of the rest.
func (in *Intake) RemoveSymptom(i int) error {
	if i < 0 || i >= len(in.Symptoms) {
		return ErrSymptomIndex
	}
	in.Symptoms = append(in.Symptoms[:i:i], in.Symptoms[i+1:]...)
	return nil
}

// ToggleCondition flips membership of a vocabulary condition and reports
// whether it is now selected.
func (in *Intake) ToggleCondition(c string) (bool, error) {
	if !validConditions[c] {
		return false, rx.Invalid("condition", "not in the condition vocabulary")
	}
	for i, existing := range in.Conditions {
		if existing == c {
			in.Conditions = append(in.Conditions[:i:i], in.Conditions[i+1:]...)
			return false, nil
		}
	}
	in.Conditions = append(in.Conditions, c)
	return true, nil
}

// HasCondition reports whether c is currently selected.
func (in *Intake) HasCondition(c string) bool {
	for _, existing := range in.Conditions {
		if existing == c {
			return true
		}
	}
	return false
}

// Problems lists every reason the intake is not ready to leave the first
// stage, in form order.
func (in *Intake) Problems() []error {
	var errs []error
	if strings.TrimSpace(in.Patient.Name) == "" {
		errs = append(errs, rx.Required("patient.name"))
	}
	if in.Patient.Age == "" {
		errs = append(errs, rx.Required("patient.age"))
	}
	if in.Patient.Gender == "" {
		errs = append(errs, rx.Required("patient.gender"))
	}
	if len(in.Symptoms) == 0 {
		errs = append(errs, rx.Invalid("symptoms", "at least one symptom is required"))
	}
	return errs
}

// Validate returns the first of Problems, or nil.
func (in *Intake) Validate() error {
	if errs := in.Problems(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Ready is the readiness predicate for Intake -> Selection.
func (in *Intake) Ready() bool {
	return in.Validate() == nil
}

// Clone returns a deep copy.
func (in *Intake) Clone() *Intake {
	return &Intake{
		Patient:    in.Patient,
		Symptoms:   append([]string{}, in.Symptoms...),
		Conditions: append([]string{}, in.Conditions...),
	}
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
