package workflow

import (
	"context"
	"errors"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
	"github.com/rxdesk/rxdesk/internal/domain/selection"
	"github.com/rxdesk/rxdesk/internal/platform/export"
	"github.com/rxdesk/rxdesk/internal/platform/render"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

// ---------------------------------------------------------------------------
// Intake
// ---------------------------------------------------------------------------

func (c *Controller) SetPatient(p intake.Patient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageIntake); err != nil {
		return err
	}
	return c.intake.SetPatient(p)
}

func (c *Controller) AddSymptom(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageIntake); err != nil {
		return err
	}
	return c.intake.AddSymptom(s)
}

func (c *Controller) RemoveSymptom(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageIntake); err != nil {
		return err
	}
	return c.intake.RemoveSymptom(i)
}

func (c *Controller) ToggleCondition(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageIntake); err != nil {
		return false, err
	}
	return c.intake.ToggleCondition(name)
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Toggle flips the candidate called name in or out of the curated list.
func (c *Controller) Toggle(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageSelection); err != nil {
		return false, err
	}
	return c.engine.ToggleByName(name)
}

func (c *Controller) UpdateField(name string, field selection.Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageSelection); err != nil {
		return err
	}
	return c.engine.UpdateField(name, field, value)
}

func (c *Controller) AddCustom(name, dosage, timing string) (selection.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageSelection); err != nil {
		return selection.Entry{}, err
	}
	return c.engine.AddCustom(name, dosage, timing)
}

func (c *Controller) RemoveByName(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageSelection); err != nil {
		return false, err
	}
	return c.engine.RemoveByName(name)
}

// IsSelected reports whether an entry called name is curated.
func (c *Controller) IsSelected(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.IsSelectedName(name)
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

func (c *Controller) SetDoctor(d assembly.Doctor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageAssembly); err != nil {
		return err
	}
	c.doctor = d
	return nil
}

// Assemble builds a new document from the current session state. The
// previous document, if any, is replaced only on success.
func (c *Controller) Assemble() (*assembly.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireStage(StageAssembly); err != nil {
		return nil, err
	}
	doc, err := assembly.BuildDocument(c.intake.Patient, c.intake.Symptoms, c.intake.Conditions, c.engine.Entries(), c.doctor)
	if err != nil {
		return nil, err
	}
	c.document = doc
	c.logger.Info().Str("document_id", doc.ID.String()).Int("medicines", len(doc.Medicines)).Msg("document assembled")
	c.publish(websocket.EventDocumentBuilt, map[string]string{"document_id": doc.ID.String()})
	return doc, nil
}

// Document returns the last assembled document.
func (c *Controller) Document() (*assembly.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.document == nil {
		return nil, ErrNoDocument
	}
	return c.document, nil
}

// Export prints or shares the last assembled document. The lock is not held
// while rendering; documents are immutable.
func (c *Controller) Export(ctx context.Context, format render.Format, action export.Action) (*export.Result, error) {
	doc, err := c.Document()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.touch()
	c.mu.Unlock()
	if c.deps.Exporter == nil {
		return nil, &rx.ExportError{Op: string(action), Err: errors.New("no exporter configured")}
	}

	res, err := c.deps.Exporter.Export(ctx, c.id, doc, format, action)
	if err != nil {
		c.logger.Warn().Err(err).Str("action", string(action)).Msg("export failed")
		return nil, err
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// View is a read-only copy of a session's state.
type View struct {
	ID              string                `json:"id"`
	Stage           Stage                 `json:"stage"`
	CanAdvance      bool                  `json:"can_advance"`
	Blockers        []string              `json:"blockers,omitempty"`
	Intake          *intake.Intake        `json:"intake"`
	FetchStatus     selection.FetchStatus `json:"fetch_status"`
	FetchError      string                `json:"fetch_error,omitempty"`
	FetchGeneration uint64                `json:"fetch_generation"` // matches suggestion event payloads
	Candidates      []CandidateView       `json:"candidates"`
	Entries         []selection.Entry     `json:"entries"`
	Doctor          assembly.Doctor       `json:"doctor"`
	Document        *assembly.Document    `json:"document,omitempty"`
}

// CandidateView pairs a suggestion with its selection state.
type CandidateView struct {
	selection.Candidate
	Selected bool `json:"selected"`
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, fetchErr := c.engine.Status()
	cands := c.engine.Candidates()
	cv := make([]CandidateView, len(cands))
	for i, cand := range cands {
		cv[i] = CandidateView{Candidate: cand, Selected: c.engine.IsSelected(cand)}
	}
	blockers := c.blockersLocked()
	v := View{
		ID:              c.id,
		Stage:           c.stage,
		CanAdvance:      len(blockers) == 0,
		Blockers:        blockers,
		Intake:          c.intake.Clone(),
		FetchStatus:     status,
		FetchGeneration: c.engine.Generation(),
		Candidates:      cv,
		Entries:         c.engine.Entries(),
		Doctor:          c.doctor,
		Document:        c.document,
	}
	if fetchErr != nil {
		v.FetchError = fetchErr.Error()
	}
	return v
}
