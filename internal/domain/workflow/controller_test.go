package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
	"github.com/rxdesk/rxdesk/internal/domain/selection"
	"github.com/rxdesk/rxdesk/internal/platform/blobstore"
	"github.com/rxdesk/rxdesk/internal/platform/export"
	"github.com/rxdesk/rxdesk/internal/platform/render"
	"github.com/rxdesk/rxdesk/internal/platform/suggest"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

// -- Fakes --

type fakeSuggest struct {
	mu       sync.Mutex
	cands    []selection.Candidate
	err      error
	gate     chan struct{} // when set, calls block until it is closed
	requests []suggest.Request
}

func (f *fakeSuggest) Suggest(ctx context.Context, req suggest.Request) (*suggest.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, cands, err := f.gate, f.cands, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &suggest.Response{Success: true, Medicines: cands}, nil
}

func (f *fakeSuggest) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (r *recordedEvents) Publish(_ context.Context, ev websocket.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var candidatesAB = []selection.Candidate{
	{Name: "A", Description: "desc A", RecommendedDosage: "1 tab", Timing: "morning"},
	{Name: "B", Description: "desc B", RecommendedDosage: "2 tab", Timing: "night", Precautions: "avoid dairy"},
}

func newTestController(t *testing.T, client suggest.Client) (*Controller, *recordedEvents) {
	t.Helper()
	events := &recordedEvents{}
	ctl := NewController("session-1", Deps{
		Suggest:      client,
		Events:       events,
		Exporter:     export.NewService(render.DefaultOptions(), blobstore.NewInMemoryBlobStore(), zerolog.Nop()),
		Logger:       zerolog.Nop(),
		FetchTimeout: 2 * time.Second,
	})
	t.Cleanup(ctl.Close)
	return ctl, events
}

func fillIntake(t *testing.T, ctl *Controller) {
	t.Helper()
	if err := ctl.SetPatient(intake.Patient{Name: "Priya", Age: "34", Gender: "Female"}); err != nil {
		t.Fatalf("SetPatient: %v", err)
	}
	for _, s := range []string{"fatigue", "joint pain"} {
		if err := ctl.AddSymptom(s); err != nil {
			t.Fatalf("AddSymptom: %v", err)
		}
	}
	if _, err := ctl.ToggleCondition("Arthritis"); err != nil {
		t.Fatalf("ToggleCondition: %v", err)
	}
}

func waitFetch(t *testing.T, ctl *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctl.WaitForSuggestions(ctx); err != nil {
		t.Fatalf("suggestions did not arrive: %v", err)
	}
}

// -- Tests --

func TestController_EndToEnd(t *testing.T) {
	client := &fakeSuggest{cands: candidatesAB}
	ctl, events := newTestController(t, client)
	fillIntake(t, ctl)

	if ok, reasons := ctl.Advance(); !ok {
		t.Fatalf("expected advance, got reasons %v", reasons)
	}
	waitFetch(t, ctl)

	req := client.requests[0]
	if len(req.Symptoms) != 2 || req.HealthConditions[0] != "Arthritis" {
		t.Fatalf("unexpected suggestion request %+v", req)
	}
	if v := ctl.Snapshot(); v.FetchStatus != selection.FetchReady || len(v.Candidates) != 2 {
		t.Fatalf("expected 2 ready candidates, got %s/%d", v.FetchStatus, len(v.Candidates))
	}

	if selected, err := ctl.Toggle("A"); err != nil || !selected {
		t.Fatalf("Toggle(A) = %v, %v", selected, err)
	}
	if _, err := ctl.AddCustom("C", "5 ml", "after food"); err != nil {
		t.Fatalf("AddCustom: %v", err)
	}
	if ok, reasons := ctl.Advance(); !ok {
		t.Fatalf("expected advance to assembly, got %v", reasons)
	}
	if err := ctl.SetDoctor(assembly.Doctor{Name: "Mehta"}); err != nil {
		t.Fatalf("SetDoctor: %v", err)
	}
	doc, err := ctl.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(doc.Medicines) != 2 || doc.Medicines[0].Name != "A" || doc.Medicines[1].Name != "C" {
		t.Fatalf("expected [A, C], got %+v", doc.Medicines)
	}
	if doc.Medicines[0].Dosage != "1 tab" || doc.Medicines[1].Description != selection.CustomDescription {
		t.Errorf("unexpected medicine details %+v", doc.Medicines)
	}
	if doc.Doctor.Name != "Mehta" || doc.Patient.Name != "Priya" || doc.Conditions[0] != "Arthritis" {
		t.Errorf("unexpected document %+v", doc)
	}

	res, err := ctl.Export(context.Background(), render.FormatHTML, export.ActionShare)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Handle == "" {
		t.Error("expected a share handle")
	}

	want := map[string]bool{
		websocket.EventStageChanged:     false,
		websocket.EventSuggestionsReady: false,
		websocket.EventDocumentBuilt:    false,
	}
	for _, typ := range events.types() {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("expected %s event", typ)
		}
	}
}

func TestController_AdvanceBlockedByIntake(t *testing.T) {
	client := &fakeSuggest{cands: candidatesAB}
	ctl, _ := newTestController(t, client)

	ok, reasons := ctl.Advance()
	if ok || len(reasons) != 4 {
		t.Fatalf("expected 4 blocking reasons, got %v %v", ok, reasons)
	}
	if ctl.Stage() != StageIntake || client.calls() != 0 {
		t.Error("blocked advance must not change stage or fetch")
	}
}

func TestController_AdvanceBlockedBySelection(t *testing.T) {
	ctl, _ := newTestController(t, &fakeSuggest{cands: candidatesAB})
	fillIntake(t, ctl)
	ctl.Advance()
	waitFetch(t, ctl)

	if ok, reasons := ctl.Advance(); ok || len(reasons) != 1 {
		t.Fatalf("expected selection to block, got %v %v", ok, reasons)
	}
	if ctl.Stage() != StageSelection {
		t.Errorf("expected to stay in selection, got %s", ctl.Stage())
	}
}

func TestController_RetreatPreservesState(t *testing.T) {
	client := &fakeSuggest{cands: candidatesAB}
	ctl, _ := newTestController(t, client)
	fillIntake(t, ctl)
	ctl.Advance()
	waitFetch(t, ctl)
	ctl.Toggle("B")
	ctl.UpdateField("B", selection.FieldDosage, "3 tab")
	ctl.Advance()
	ctl.SetDoctor(assembly.Doctor{Name: "Mehta", Registration: "R-1"})

	if !ctl.Retreat() {
		t.Fatal("expected retreat from assembly")
	}
	waitFetch(t, ctl)
	if client.calls() != 2 {
		t.Errorf("re-entering selection must fetch again, got %d calls", client.calls())
	}
	if !ctl.Retreat() {
		t.Fatal("expected retreat from selection")
	}
	if ctl.Retreat() {
		t.Error("retreat from intake must report false")
	}

	v := ctl.Snapshot()
	if v.Stage != StageIntake || v.Intake.Patient.Name != "Priya" || len(v.Intake.Symptoms) != 2 {
		t.Errorf("intake not preserved: %+v", v.Intake)
	}
	if len(v.Entries) != 1 || v.Entries[0].Dosage != "3 tab" {
		t.Errorf("curated entries not preserved: %+v", v.Entries)
	}
	if v.Doctor.Registration != "R-1" {
		t.Errorf("doctor not preserved: %+v", v.Doctor)
	}
}

func TestController_PendingBlocksSelection(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeSuggest{cands: candidatesAB, gate: gate}
	ctl, _ := newTestController(t, client)
	fillIntake(t, ctl)
	ctl.Advance()

	if _, err := ctl.AddCustom("C", "1", "2"); !errors.Is(err, selection.ErrSuggestionsPending) {
		t.Fatalf("expected ErrSuggestionsPending, got %v", err)
	}
	if v := ctl.Snapshot(); v.FetchStatus != selection.FetchPending || len(v.Candidates) != 0 {
		t.Errorf("expected empty pending list, got %+v", v.FetchStatus)
	}
	close(gate)
	waitFetch(t, ctl)
	if _, err := ctl.AddCustom("C", "1", "2"); err != nil {
		t.Errorf("expected selection to open after fetch, got %v", err)
	}
}

func TestController_FetchFailureAllowsManualMode(t *testing.T) {
	ctl, events := newTestController(t, &fakeSuggest{err: errors.New("upstream 500")})
	fillIntake(t, ctl)
	ctl.Advance()
	waitFetch(t, ctl)

	v := ctl.Snapshot()
	if v.FetchStatus != selection.FetchFailed || v.FetchError == "" {
		t.Fatalf("expected failed fetch, got %+v", v.FetchStatus)
	}
	if _, err := ctl.AddCustom("Custom", "1 tsp", "night"); err != nil {
		t.Fatalf("manual mode must stay usable: %v", err)
	}
	if ok, _ := ctl.Advance(); !ok {
		t.Error("expected advance with a custom entry")
	}

	found := false
	for _, typ := range events.types() {
		if typ == websocket.EventSuggestionsError {
			found = true
		}
	}
	if !found {
		t.Error("expected suggestions.failed event")
	}
}

func TestController_StaleResponseDroppedAfterRetreat(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeSuggest{cands: candidatesAB, gate: gate}
	ctl, _ := newTestController(t, client)
	fillIntake(t, ctl)
	ctl.Advance()
	ctl.Retreat()
	waitFetch(t, ctl) // cancelled by retreat

	v := ctl.Snapshot()
	if len(v.Candidates) != 0 {
		t.Errorf("cancelled fetch must not populate candidates, got %d", len(v.Candidates))
	}
	if v.FetchStatus == selection.FetchPending || v.FetchStatus == selection.FetchFailed {
		t.Errorf("unexpected status after abandon %s", v.FetchStatus)
	}
	close(gate)
}

func TestController_ViewGenerationMatchesEvents(t *testing.T) {
	ctl, events := newTestController(t, &fakeSuggest{cands: candidatesAB})
	fillIntake(t, ctl)

	lastReady := func() uint64 {
		events.mu.Lock()
		defer events.mu.Unlock()
		for i := len(events.events) - 1; i >= 0; i-- {
			if ev := events.events[i]; ev.Type == websocket.EventSuggestionsReady {
				var data struct {
					Generation uint64 `json:"generation"`
				}
				if err := json.Unmarshal(ev.Data, &data); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				return data.Generation
			}
		}
		t.Fatal("no suggestions.ready event")
		return 0
	}

	ctl.Advance()
	waitFetch(t, ctl)
	first := ctl.Snapshot().FetchGeneration
	if first == 0 || first != lastReady() {
		t.Fatalf("view generation %d does not match event %d", first, lastReady())
	}

	ctl.Retreat()
	ctl.Advance()
	waitFetch(t, ctl)
	second := ctl.Snapshot().FetchGeneration
	if second <= first || second != lastReady() {
		t.Errorf("expected a newer generation matching the event, got %d (first %d, event %d)", second, first, lastReady())
	}
}

func TestController_Reset(t *testing.T) {
	ctl, _ := newTestController(t, &fakeSuggest{cands: candidatesAB})
	fillIntake(t, ctl)
	ctl.Advance()
	waitFetch(t, ctl)
	ctl.Toggle("A")
	ctl.Advance()
	ctl.SetDoctor(assembly.Doctor{Name: "Mehta"})
	ctl.Assemble()

	ctl.Reset()
	v := ctl.Snapshot()
	if v.Stage != StageIntake || v.Intake.Patient.Name != "" || len(v.Intake.Symptoms) != 0 || len(v.Intake.Conditions) != 0 {
		t.Errorf("intake not cleared: %+v", v.Intake)
	}
	if len(v.Entries) != 0 || len(v.Candidates) != 0 || v.Doctor.Name != "" || v.Document != nil {
		t.Errorf("session not cleared: %+v", v)
	}
	if _, err := ctl.Document(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestController_StageGuards(t *testing.T) {
	ctl, _ := newTestController(t, &fakeSuggest{cands: candidatesAB})

	if _, err := ctl.Toggle("A"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("toggle in intake: expected ErrWrongStage, got %v", err)
	}
	if err := ctl.SetDoctor(assembly.Doctor{Name: "X"}); !errors.Is(err, ErrWrongStage) {
		t.Errorf("doctor in intake: expected ErrWrongStage, got %v", err)
	}
	if _, err := ctl.Assemble(); !errors.Is(err, ErrWrongStage) {
		t.Errorf("assemble in intake: expected ErrWrongStage, got %v", err)
	}
	if _, err := ctl.Export(context.Background(), render.FormatHTML, export.ActionPrint); !errors.Is(err, ErrNoDocument) {
		t.Errorf("export without document: expected ErrNoDocument, got %v", err)
	}

	fillIntake(t, ctl)
	ctl.Advance()
	if err := ctl.AddSymptom("late"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("symptom in selection: expected ErrWrongStage, got %v", err)
	}
}

func TestController_AssembleRequiresDoctor(t *testing.T) {
	ctl, _ := newTestController(t, &fakeSuggest{cands: candidatesAB})
	fillIntake(t, ctl)
	ctl.Advance()
	waitFetch(t, ctl)
	ctl.Toggle("A")
	ctl.Advance()

	ctl.SetDoctor(assembly.Doctor{Name: "   "})
	if _, err := ctl.Assemble(); !rx.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ctl.Document(); !errors.Is(err, ErrNoDocument) {
		t.Error("failed assembly must not store a document")
	}
}
