// Package render turns prescription documents into HTML, Markdown and
// spreadsheet artifacts.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Format selects an output representation.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

const (
	ContentTypeHTML     = "text/html; charset=utf-8"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Options carries the letterhead printed on every document.
type Options struct {
	Title             string
	Tagline           string
	PractitionerTitle string
}

// DefaultOptions returns the standard letterhead.
func DefaultOptions() Options {
	return Options{
		Title:             "AYURVEDIC PRESCRIPTION",
		Tagline:           "Traditional Medicine for Modern Wellness",
		PractitionerTitle: "Ayurvedic Practitioner",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Tagline == "" {
		o.Tagline = d.Tagline
	}
	if o.PractitionerTitle == "" {
		o.PractitionerTitle = d.PractitionerTitle
	}
	return o
}

// ParseFormat accepts the format names used by the API and the CLI.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html", "":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// New returns the renderer for format.
func New(format Format, opts Options) (assembly.Renderer, error) {
	switch format {
	case FormatHTML:
		return NewHTMLRenderer(opts), nil
	case FormatMarkdown:
		return NewMarkdownRenderer(opts), nil
	case FormatXLSX:
		return NewXLSXRenderer(opts), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func fileName(doc *assembly.Document, ext string) string {
	id := doc.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("prescription-%s-%s.%s", doc.IssuedAt.Format("20060102"), id, ext)
}

func conditionsOrNone(doc *assembly.Document) []string {
	if len(doc.Conditions) == 0 {
		return []string{"None reported"}
	}
	return doc.Conditions
}

func hasDuration(doc *assembly.Document) bool {
	for _, m := range doc.Medicines {
		if m.Duration != "" {
			return true
		}
	}
	return false
}
