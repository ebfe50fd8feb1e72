package assembly

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rxdesk/rxdesk/internal/domain/intake"
)

// Doctor identifies the prescriber.
type Doctor struct {
	Name         string `json:"name"`
	Registration string `json:"registration,omitempty"`
}

// Medicine is one prescribed line as it appears on the document.
type Medicine struct {
	Name        string `json:"name"`
	Dosage      string `json:"dosage"`
	Timing      string `json:"timing"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
	Precautions string `json:"precautions,omitempty"`
}

// Document is the assembled prescription. A Document is a snapshot: nothing
// in it shares memory with the session it was built from, and no code path
// mutates it after BuildDocument returns.
type Document struct {
	ID         uuid.UUID      `json:"id"`
	IssuedAt   time.Time      `json:"issued_at"`
	Patient    intake.Patient `json:"patient"`
	Symptoms   []string       `json:"symptoms"`
	Conditions []string       `json:"conditions"`
	Medicines  []Medicine     `json:"medicines"`
	Doctor     Doctor         `json:"doctor"`
}

// Artifact is a rendered document: opaque bytes plus what is needed to hand
// them to a printer or a file share.
type Artifact struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
	Body        []byte `json:"-"`
}

// Renderer turns a document into a displayable or exportable artifact.
type Renderer interface {
	Render(ctx context.Context, doc *Document) (*Artifact, error)
}
