package selection

import (
	"errors"
	"testing"

	"github.com/rxdesk/rxdesk/internal/domain/rx"
)

var (
	candA = Candidate{Name: "Triphala Churna", Description: "Digestive", RecommendedDosage: "1 tsp", Timing: "Before bedtime", Precautions: "Avoid in pregnancy"}
	candB = Candidate{Name: "Brahmi Vati", Description: "Nervine tonic", RecommendedDosage: "2 tablets", Timing: "After meals"}
	candC = Candidate{Name: "Mahayograj Guggulu", Description: "Joint support", RecommendedDosage: "1 tablet", Timing: "Twice daily"}
)

func loadedEngine(t *testing.T, cands ...Candidate) *Engine {
	t.Helper()
	e := NewEngine()
	gen := e.BeginFetch()
	if !e.CompleteFetch(gen, cands, nil) {
		t.Fatal("expected fetch to apply")
	}
	return e
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.Name
	}
	return out
}

func equalNames(t *testing.T, got []Entry, want ...string) {
	t.Helper()
	gn := names(got)
	if len(gn) != len(want) {
		t.Fatalf("entries = %v, want %v", gn, want)
	}
	for i := range want {
		if gn[i] != want[i] {
			t.Fatalf("entries = %v, want %v", gn, want)
		}
	}
}

func TestToggle_AddsEntryFromCandidate(t *testing.T) {
	e := loadedEngine(t, candA, candB)
	on, err := e.Toggle(candA)
	if err != nil || !on {
		t.Fatalf("Toggle = %v, %v", on, err)
	}
	got := e.Entries()[0]
	if got.Dosage != "1 tsp" || got.Timing != "Before bedtime" || got.Description != "Digestive" || got.Precautions != "Avoid in pregnancy" {
		t.Errorf("entry not derived from candidate: %+v", got)
	}
	if !e.IsSelected(candA) || e.IsSelected(candB) {
		t.Error("unexpected selection state")
	}
}

func TestToggle_DoubleToggleRestoresMembership(t *testing.T) {
	e := loadedEngine(t, candA, candB, candC)
	e.Toggle(candA)
	e.Toggle(candB)
	before := e.Entries()

	if _, err := e.Toggle(candC); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Toggle(candC); err != nil {
		t.Fatal(err)
	}
	equalNames(t, e.Entries(), names(before)...)
}

func TestToggle_OffThenOnMovesToEnd(t *testing.T) {
	e := loadedEngine(t, candA, candB, candC)
	e.Toggle(candA)
	e.Toggle(candB)
	e.Toggle(candC)

	e.Toggle(candA)
	equalNames(t, e.Entries(), candB.Name, candC.Name)
	e.Toggle(candA)
	equalNames(t, e.Entries(), candB.Name, candC.Name, candA.Name)
}

func TestToggle_KeepsEditedFieldsUntilRemoved(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)
	if err := e.UpdateField(candA.Name, FieldDosage, "2 tsp"); err != nil {
		t.Fatal(err)
	}
	if got := e.Entries()[0].Dosage; got != "2 tsp" {
		t.Errorf("dosage = %q", got)
	}
	e.Toggle(candA)
	e.Toggle(candA)
	if got := e.Entries()[0].Dosage; got != "1 tsp" {
		t.Errorf("re-added entry should start from the recommendation, got %q", got)
	}
}

func TestUpdateField_AbsentNameIsNoop(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)
	before := e.Entries()

	if err := e.UpdateField("Unknown", FieldTiming, "Morning"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	after := e.Entries()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("collection changed: %+v -> %+v", before, after)
	}
}

func TestUpdateField_RejectsUnknownField(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)
	if err := e.UpdateField(candA.Name, Field("description"), "x"); !rx.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAddCustom_EmptyInputsFail(t *testing.T) {
	tests := []struct {
		name, dosage, timing string
		field                string
	}{
		{"", "x", "y", "name"},
		{"x", "", "y", "dosage"},
		{"x", "y", "", "timing"},
		{"   ", "x", "y", "name"},
	}
	for _, tt := range tests {
		e := loadedEngine(t, candA)
		e.Toggle(candA)
		before := e.Entries()

		_, err := e.AddCustom(tt.name, tt.dosage, tt.timing)
		var ve *rx.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("AddCustom(%q,%q,%q): expected ValidationError, got %v", tt.name, tt.dosage, tt.timing, err)
		}
		if ve.Field != tt.field {
			t.Errorf("field = %q, want %q", ve.Field, tt.field)
		}
		equalNames(t, e.Entries(), names(before)...)
	}
}

func TestAddCustom_TrimsAndMarksEntry(t *testing.T) {
	e := loadedEngine(t)
	entry, err := e.AddCustom("  Ashwagandha Churna ", " 1 tsp ", " with milk ")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "Ashwagandha Churna" || entry.Dosage != "1 tsp" || entry.Timing != "with milk" {
		t.Errorf("inputs not trimmed: %+v", entry)
	}
	if entry.Description != CustomDescription || entry.Precautions != "" || !entry.Custom {
		t.Errorf("unexpected custom entry: %+v", entry)
	}
}

func TestAddCustom_RejectsNameCollision(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)
	if _, err := e.AddCustom(candA.Name, "1", "2"); !rx.IsValidation(err) {
		t.Fatalf("expected collision to be rejected, got %v", err)
	}
	if len(e.Entries()) != 1 {
		t.Errorf("expected one entry, got %d", len(e.Entries()))
	}
}

func TestRemoveByName_ThenIsSelectedFalse(t *testing.T) {
	e := loadedEngine(t, candA, candB)
	e.Toggle(candA)
	e.Toggle(candB)

	removed, err := e.RemoveByName(candA.Name)
	if err != nil || !removed {
		t.Fatalf("RemoveByName = %v, %v", removed, err)
	}
	if e.IsSelected(candA) || e.IsSelectedName(candA.Name) {
		t.Error("expected candidate to be unselected")
	}
	removed, _ = e.RemoveByName("Nothing")
	if removed {
		t.Error("expected no-op for unknown name")
	}
	equalNames(t, e.Entries(), candB.Name)
}

func TestPendingBlocksOperations(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)
	e.BeginFetch()

	if len(e.Candidates()) != 0 {
		t.Error("candidates must be empty while pending")
	}
	if _, err := e.Toggle(candA); !errors.Is(err, ErrSuggestionsPending) {
		t.Errorf("Toggle: expected ErrSuggestionsPending, got %v", err)
	}
	if _, err := e.AddCustom("x", "y", "z"); !errors.Is(err, ErrSuggestionsPending) {
		t.Errorf("AddCustom: expected ErrSuggestionsPending, got %v", err)
	}
	if err := e.UpdateField(candA.Name, FieldDosage, "3"); !errors.Is(err, ErrSuggestionsPending) {
		t.Errorf("UpdateField: expected ErrSuggestionsPending, got %v", err)
	}
	if _, err := e.RemoveByName(candA.Name); !errors.Is(err, ErrSuggestionsPending) {
		t.Errorf("RemoveByName: expected ErrSuggestionsPending, got %v", err)
	}
	equalNames(t, e.Entries(), candA.Name)
}

func TestCompleteFetch_KeepsCuratedAndDropsStale(t *testing.T) {
	e := loadedEngine(t, candA)
	e.Toggle(candA)

	stale := e.BeginFetch()
	fresh := e.BeginFetch()
	if e.CompleteFetch(stale, []Candidate{candC}, nil) {
		t.Error("stale response must be dropped")
	}
	if !e.CompleteFetch(fresh, []Candidate{candB}, nil) {
		t.Fatal("fresh response must apply")
	}
	if _, ok := e.Candidate(candC.Name); ok {
		t.Error("stale candidate leaked into the list")
	}
	if _, ok := e.Candidate(candB.Name); !ok {
		t.Error("fresh candidate missing")
	}
	equalNames(t, e.Entries(), candA.Name)
}

func TestCompleteFetch_FailureLeavesManualMode(t *testing.T) {
	e := NewEngine()
	gen := e.BeginFetch()
	e.CompleteFetch(gen, nil, errors.New("timeout"))

	status, err := e.Status()
	if status != FetchFailed {
		t.Errorf("status = %s", status)
	}
	var sfe *rx.SuggestionFetchError
	if !errors.As(err, &sfe) {
		t.Errorf("expected SuggestionFetchError, got %v", err)
	}
	if _, err := e.AddCustom("Chyawanprash", "1 tsp", "Morning"); err != nil {
		t.Errorf("manual entry must work after failure: %v", err)
	}
	if !e.Ready() {
		t.Error("expected engine to be ready with a custom entry")
	}
}

func TestAbandonFetch_DropsLateResponse(t *testing.T) {
	e := NewEngine()
	gen := e.BeginFetch()
	e.AbandonFetch()
	if e.CompleteFetch(gen, []Candidate{candA}, nil) {
		t.Error("response after abandon must be dropped")
	}
	if status, _ := e.Status(); status != FetchIdle {
		t.Errorf("status = %s, want idle", status)
	}
}

func TestNormalise_TrimsAndDeduplicates(t *testing.T) {
	e := loadedEngine(t,
		Candidate{Name: " Liv.52 "},
		Candidate{Name: "Liv.52", Description: "second"},
		Candidate{Name: "  "},
	)
	cands := e.Candidates()
	if len(cands) != 1 || cands[0].Name != "Liv.52" || cands[0].Description != "" {
		t.Errorf("unexpected candidates %+v", cands)
	}
}

func TestToggleByName_UnknownCandidate(t *testing.T) {
	e := loadedEngine(t, candA)
	if _, err := e.ToggleByName("Nope"); !errors.Is(err, ErrUnknownCandidate) {
		t.Errorf("expected ErrUnknownCandidate, got %v", err)
	}
	on, err := e.ToggleByName(" " + candA.Name)
	if err != nil || !on {
		t.Errorf("ToggleByName = %v, %v", on, err)
	}
}
