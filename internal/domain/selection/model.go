package selection

import "github.com/rxdesk/rxdesk/internal/domain/rx"

// CustomDescription is the fixed description given to hand-authored entries.
const CustomDescription = "Custom medicine added by doctor"

// Candidate is a remedy proposed by the suggestion source. Candidates are
// read-only inputs to the engine.
type Candidate struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	RecommendedDosage string `json:"recommended_dosage"`
	Timing            string `json:"timing"`
	Precautions       string `json:"precautions,omitempty"`
}

// Key returns the candidate's identity.
func (c Candidate) Key() rx.Key { return rx.KeyOf(c.Name) }

// Entry is a medicine accepted into the prescription. Only Dosage and Timing
// change after creation.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Dosage      string `json:"dosage"`
	Timing      string `json:"timing"`
	Precautions string `json:"precautions,omitempty"`
	Custom      bool   `json:"custom"`
}

// Key returns the entry's identity.
func (e Entry) Key() rx.Key { return rx.KeyOf(e.Name) }

func entryFromCandidate(c Candidate) Entry {
	return Entry{
		Name:        string(c.Key()),
		Description: c.Description,
		Dosage:      c.RecommendedDosage,
		Timing:      c.Timing,
		Precautions: c.Precautions,
	}
}

// Field names an editable attribute of an Entry.
type Field string

const (
	FieldDosage Field = "dosage"
	FieldTiming Field = "timing"
)

// FetchStatus describes the state of the most recent suggestion request.
type FetchStatus string

const (
	FetchIdle    FetchStatus = "idle"
	FetchPending FetchStatus = "pending"
	FetchReady   FetchStatus = "ready"
	FetchFailed  FetchStatus = "failed"
)
