// Package export hands assembled prescriptions to the outside world: a
// printable page, or a stored artifact behind a shareable download handle.
// Every failure is reported as an *rx.ExportError and leaves the document
// untouched, so the caller can retry.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/rx"
	"github.com/rxdesk/rxdesk/internal/platform/blobstore"
	"github.com/rxdesk/rxdesk/internal/platform/render"
)

// Action is what the practitioner wants done with the document.
type Action string

const (
	ActionPrint Action = "print"
	ActionShare Action = "share"
)

// Result describes a completed export. Printable results carry the page
// inline; shared results carry a download handle. Markdown shares also carry
// an HTML preview of the shared text.
type Result struct {
	Action      Action                  `json:"action"`
	Format      render.Format           `json:"format"`
	FileName    string                  `json:"file_name"`
	ContentType string                  `json:"content_type"`
	Handle      string                  `json:"handle,omitempty"`
	Artifact    *blobstore.BlobMetadata `json:"artifact,omitempty"`
	Body        string                  `json:"body,omitempty"`
	Preview     string                  `json:"preview,omitempty"`
}

// Service renders and dispatches documents.
type Service struct {
	opts   render.Options
	store  blobstore.BlobStore
	logger zerolog.Logger
}

func NewService(opts render.Options, store blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{opts: opts, store: store, logger: logger}
}

// Export dispatches on action.
func (s *Service) Export(ctx context.Context, sessionID string, doc *assembly.Document, format render.Format, action Action) (*Result, error) {
	switch action {
	case ActionPrint:
		return s.Print(ctx, doc)
	case ActionShare:
		return s.Share(ctx, sessionID, doc, format)
	default:
		return nil, rx.Invalid("action", fmt.Sprintf("unknown action %q", action))
	}
}

// Print renders doc as a printable HTML page.
func (s *Service) Print(ctx context.Context, doc *assembly.Document) (*Result, error) {
	if doc == nil {
		return nil, &rx.ExportError{Op: string(ActionPrint), Err: fmt.Errorf("no document")}
	}
	art, err := render.NewHTMLRenderer(s.opts).Render(ctx, doc)
	if err != nil {
		return nil, &rx.ExportError{Op: string(ActionPrint), Err: err}
	}
	s.logger.Info().Str("document_id", doc.ID.String()).Msg("document prepared for printing")
	return &Result{
		Action:      ActionPrint,
		Format:      render.FormatHTML,
		FileName:    art.FileName,
		ContentType: art.ContentType,
		Body:        string(art.Body),
	}, nil
}

// Share renders doc in format, stores the artifact and returns its handle.
func (s *Service) Share(ctx context.Context, sessionID string, doc *assembly.Document, format render.Format) (*Result, error) {
	op := string(ActionShare)
	if doc == nil {
		return nil, &rx.ExportError{Op: op, Err: fmt.Errorf("no document")}
	}
	r, err := render.New(format, s.opts)
	if err != nil {
		return nil, rx.Invalid("format", err.Error())
	}
	art, err := r.Render(ctx, doc)
	if err != nil {
		return nil, &rx.ExportError{Op: op, Err: err}
	}

	meta, err := s.store.Put(ctx, blobstore.BlobMetadata{
		FileName:    art.FileName,
		ContentType: art.ContentType,
		SessionID:   sessionID,
		DocumentID:  doc.ID.String(),
		Format:      string(format),
	}, bytes.NewReader(art.Body))
	if err != nil {
		return nil, &rx.ExportError{Op: op, Err: err}
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("document_id", doc.ID.String()).
		Str("artifact_id", meta.ID).
		Str("format", string(format)).
		Int64("size", meta.Size).
		Msg("document shared")

	res := &Result{
		Action:      ActionShare,
		Format:      format,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Handle:      blobstore.DownloadPath(meta.ID),
		Artifact:    meta,
	}
	if md, ok := r.(*render.MarkdownRenderer); ok {
		res.Preview = string(md.PreviewHTML(doc))
	}
	return res, nil
}
