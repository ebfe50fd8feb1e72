package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
)

// MarkdownRenderer produces a plain-text Markdown prescription, suitable for
// pasting into messages or notes.
type MarkdownRenderer struct {
	opts Options
}

func NewMarkdownRenderer(opts Options) *MarkdownRenderer {
	return &MarkdownRenderer{opts: opts.withDefaults()}
}

func (r *MarkdownRenderer) Render(ctx context.Context, doc *assembly.Document) (*assembly.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &assembly.Artifact{
		ContentType: ContentTypeMarkdown,
		FileName:    fileName(doc, "md"),
		Body:        []byte(r.Markdown(doc)),
	}, nil
}

// Markdown returns the document as Markdown source.
func (r *MarkdownRenderer) Markdown(doc *assembly.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.opts.Title)
	fmt.Fprintf(&b, "_%s_\n\n", r.opts.Tagline)
	fmt.Fprintf(&b, "Date: %s\n\n", doc.IssuedAt.Format("January 02, 2006"))

	b.WriteString("## Patient Information\n\n")
	fmt.Fprintf(&b, "- **Name:** %s\n", escape(doc.Patient.Name))
	fmt.Fprintf(&b, "- **Age:** %s years\n", escape(doc.Patient.Age))
	fmt.Fprintf(&b, "- **Gender:** %s\n\n", escape(doc.Patient.Gender))

	b.WriteString("## Symptoms\n\n")
	for _, s := range doc.Symptoms {
		fmt.Fprintf(&b, "- %s\n", escape(s))
	}
	b.WriteString("\n## Health Conditions\n\n")
	for _, c := range conditionsOrNone(doc) {
		fmt.Fprintf(&b, "- %s\n", escape(c))
	}

	b.WriteString("\n## Prescribed Medicines\n\n")
	dur := hasDuration(doc)
	if dur {
		b.WriteString("| # | Medicine Name | Dosage | Timing | Duration |\n|---|---|---|---|---|\n")
	} else {
		b.WriteString("| # | Medicine Name | Dosage | Timing |\n|---|---|---|---|\n")
	}
	for i, m := range doc.Medicines {
		fmt.Fprintf(&b, "| %d | **%s** | %s | %s |", i+1, cell(m.Name), cell(m.Dosage), cell(m.Timing))
		if dur {
			fmt.Fprintf(&b, " %s |", cell(m.Duration))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n---\n\n**Dr. %s**  \n", escape(doc.Doctor.Name))
	if doc.Doctor.Registration != "" {
		fmt.Fprintf(&b, "Registration No: %s  \n", escape(doc.Doctor.Registration))
	}
	b.WriteString(r.opts.PractitionerTitle + "\n")
	return b.String()
}

// PreviewHTML renders the Markdown form to an HTML fragment.
func (r *MarkdownRenderer) PreviewHTML(doc *assembly.Document) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML})
	return markdown.ToHTML([]byte(r.Markdown(doc)), p, renderer)
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

func escape(s string) string { return mdEscaper.Replace(s) }

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(escape(s), "|", `\|`), "\n", " ")
}
