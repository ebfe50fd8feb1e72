package intake

import (
	"errors"
	"testing"

	"github.com/rxdesk/rxdesk/internal/domain/rx"
)

func readyIntake(t *testing.T) *Intake {
	t.Helper()
	in := New()
	if err := in.SetPatient(Patient{Name: "Asha", Age: "34", Gender: "Female"}); err != nil {
		t.Fatalf("SetPatient: %v", err)
	}
	if err := in.AddSymptom("fatigue"); err != nil {
		t.Fatalf("AddSymptom: %v", err)
	}
	return in
}

func TestIntake_ReadinessTruthTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Intake)
		ready  bool
		field  string
	}{
		{"all set", func(in *Intake) {}, true, ""},
		{"missing age", func(in *Intake) { in.Patient.Age = "" }, false, "patient.age"},
		{"blank name", func(in *Intake) { in.Patient.Name = "   " }, false, "patient.name"},
		{"no gender", func(in *Intake) { in.Patient.Gender = "" }, false, "patient.gender"},
		{"no symptoms", func(in *Intake) { in.Symptoms = nil }, false, "symptoms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyIntake(t)
			tt.mutate(in)
			if got := in.Ready(); got != tt.ready {
				t.Errorf("Ready() = %v, want %v", got, tt.ready)
			}
			err := in.Validate()
			if tt.ready {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var ve *rx.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestIntake_SetPatientRejectsBadAgeAndGender(t *testing.T) {
	in := New()
	if err := in.SetPatient(Patient{Name: "Ravi", Age: "thirty"}); !rx.IsValidation(err) {
		t.Errorf("expected validation error for non-numeric age, got %v", err)
	}
	if err := in.SetPatient(Patient{Name: "Ravi", Gender: "Unknown"}); !rx.IsValidation(err) {
		t.Errorf("expected validation error for gender, got %v", err)
	}
	if in.Patient.Name != "" {
		t.Error("rejected SetPatient must not mutate the intake")
	}
	if err := in.SetPatient(Patient{Name: "Ravi", Age: " 41 ", Gender: "Male"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Patient.Age != "41" {
		t.Errorf("expected trimmed age, got %q", in.Patient.Age)
	}
}

func TestIntake_SymptomsKeepDuplicatesAndOrder(t *testing.T) {
	in := New()
	for _, s := range []string{"fatigue", " joint pain ", "fatigue"} {
		if err := in.AddSymptom(s); err != nil {
			t.Fatalf("AddSymptom(%q): %v", s, err)
		}
	}
	if err := in.AddSymptom("  "); !rx.IsValidation(err) {
		t.Errorf("expected validation error for blank symptom, got %v", err)
	}
	if len(in.Symptoms) != 3 || in.Symptoms[1] != "joint pain" {
		t.Fatalf("unexpected symptoms %v", in.Symptoms)
	}
	if err := in.RemoveSymptom(0); err != nil {
		t.Fatalf("RemoveSymptom: %v", err)
	}
	if in.Symptoms[0] != "joint pain" || in.Symptoms[1] != "fatigue" {
		t.Errorf("unexpected order after remove: %v", in.Symptoms)
	}
	if err := in.RemoveSymptom(5); !errors.Is(err, ErrSymptomIndex) {
		t.Errorf("expected ErrSymptomIndex, got %v", err)
	}
}

func TestIntake_ToggleCondition(t *testing.T) {
	in := New()
	on, err := in.ToggleCondition("Arthritis")
	if err != nil || !on {
		t.Fatalf("expected Arthritis on, got %v %v", on, err)
	}
	on, _ = in.ToggleCondition("Arthritis")
	if on || in.HasCondition("Arthritis") {
		t.Error("expected Arthritis toggled off")
	}
	if _, err := in.ToggleCondition("Gout"); !rx.IsValidation(err) {
		t.Errorf("expected validation error outside vocabulary, got %v", err)
	}
}

func TestIntake_CloneIsIndependent(t *testing.T) {
	in := readyIntake(t)
	cp := in.Clone()
	in.Symptoms[0] = "changed"
	if cp.Symptoms[0] != "fatigue" {
		t.Error("clone shares symptom storage with the original")
	}
}

func TestProblems_ListsEveryMissingField(t *testing.T) {
	in := New()
	in.Patient.Name = "  "
	errs := in.Problems()
	if len(errs) != 4 {
		t.Fatalf("expected 4 problems, got %v", errs)
	}
	if errs[0].Error() != "patient.name: is required" {
		t.Errorf("unexpected first problem %q", errs[0])
	}

	in.SetPatient(Patient{Name: "Ravi", Age: "40", Gender: "Male"})
	in.AddSymptom("cough")
	if errs := in.Problems(); len(errs) != 0 {
		t.Errorf("expected no problems, got %v", errs)
	}
}
