package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
)

// HTMLRenderer produces a self-contained printable page.
type HTMLRenderer struct {
	opts Options
	tmpl *template.Template
}

func NewHTMLRenderer(opts Options) *HTMLRenderer {
	return &HTMLRenderer{
		opts: opts.withDefaults(),
		tmpl: template.Must(template.New("prescription").Funcs(template.FuncMap{
			"inc": func(i int) int { return i + 1 },
		}).Parse(prescriptionHTML)),
	}
}

type htmlView struct {
	Opts        Options
	Doc         *assembly.Document
	LongDate    string
	ShortDate   string
	Conditions  []string
	HasDuration bool
}

func (r *HTMLRenderer) Render(ctx context.Context, doc *assembly.Document) (*assembly.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := r.RenderString(doc)
	if err != nil {
		return nil, err
	}
	return &assembly.Artifact{
		ContentType: ContentTypeHTML,
		FileName:    fileName(doc, "html"),
		Body:        []byte(body),
	}, nil
}

// RenderString renders doc to an HTML page.
func (r *HTMLRenderer) RenderString(doc *assembly.Document) (string, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, htmlView{
		Opts:        r.opts,
		Doc:         doc,
		LongDate:    doc.IssuedAt.Format("January 02, 2006"),
		ShortDate:   doc.IssuedAt.Format("02/01/2006"),
		Conditions:  conditionsOrNone(doc),
		HasDuration: hasDuration(doc),
	})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

const prescriptionHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Opts.Title}} - {{.Doc.Patient.Name}}</title>
<style>
@media print { body { margin: 0; padding: 20px; } .print-button { display: none; } }
body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; background: white; }
.header { text-align: center; border-bottom: 3px solid #297691; padding-bottom: 20px; margin-bottom: 30px; }
.header h1 { color: #297691; margin: 0; font-size: 28px; }
.header p { color: #4B95AF; margin: 5px 0; }
.section { margin-bottom: 25px; }
.section-title { background: #297691; color: white; padding: 10px 15px; margin-bottom: 15px; font-weight: bold; font-size: 16px; }
.patient-info { display: grid; grid-template-columns: 1fr 1fr; gap: 10px; padding: 0 15px; }
.info-item { padding: 8px 0; }
.info-label { color: #19647F; font-weight: bold; display: inline-block; width: 120px; }
.medicines-table { width: 100%; border-collapse: collapse; margin-top: 10px; }
.medicines-table th { background: #4B95AF; color: white; padding: 12px; text-align: left; }
.medicines-table td { padding: 12px; border-bottom: 1px solid #6DB4CD; }
.medicines-table tr:nth-child(even) { background: #f8f9fa; }
.list { padding: 0 15px; }
.list ul { list-style: disc; padding-left: 20px; }
.list li { padding: 5px 0; color: #053445; }
.footer { margin-top: 50px; padding-top: 20px; border-top: 2px solid #6DB4CD; text-align: right; }
.signature { margin-top: 60px; }
.doctor-name { font-weight: bold; color: #297691; }
.print-button { background: #297691; color: white; border: none; padding: 12px 30px; font-size: 16px; cursor: pointer; border-radius: 5px; margin: 20px auto; display: block; }
</style>
</head>
<body>
<div class="header">
  <h1>{{.Opts.Title}}</h1>
  <p>{{.Opts.Tagline}}</p>
  <p>Date: {{.LongDate}}</p>
</div>

<div class="section">
  <div class="section-title">PATIENT INFORMATION</div>
  <div class="patient-info">
    <div class="info-item"><span class="info-label">Name:</span><span>{{.Doc.Patient.Name}}</span></div>
    <div class="info-item"><span class="info-label">Age:</span><span>{{.Doc.Patient.Age}} years</span></div>
    <div class="info-item"><span class="info-label">Gender:</span><span>{{.Doc.Patient.Gender}}</span></div>
    <div class="info-item"><span class="info-label">Date:</span><span>{{.ShortDate}}</span></div>
  </div>
</div>

<div class="section">
  <div class="section-title">SYMPTOMS</div>
  <div class="list"><ul>{{range .Doc.Symptoms}}<li>{{.}}</li>{{end}}</ul></div>
</div>

<div class="section">
  <div class="section-title">HEALTH CONDITIONS</div>
  <div class="list"><ul>{{range .Conditions}}<li>{{.}}</li>{{end}}</ul></div>
</div>

<div class="section">
  <div class="section-title">PRESCRIBED MEDICINES</div>
  <table class="medicines-table">
    <thead><tr><th>#</th><th>Medicine Name</th><th>Dosage</th><th>Timing</th>{{if .HasDuration}}<th>Duration</th>{{end}}</tr></thead>
    <tbody>
    {{- $dur := .HasDuration}}
    {{- range $i, $m := .Doc.Medicines}}
      <tr><td>{{inc $i}}</td><td><strong>{{$m.Name}}</strong></td><td>{{$m.Dosage}}</td><td>{{$m.Timing}}</td>{{if $dur}}<td>{{$m.Duration}}</td>{{end}}</tr>
    {{- end}}
    </tbody>
  </table>
</div>

<div class="footer">
  <div class="signature">
    <p class="doctor-name">Dr. {{.Doc.Doctor.Name}}</p>
    {{- if .Doc.Doctor.Registration}}
    <p>Registration No: {{.Doc.Doctor.Registration}}</p>
    {{- end}}
    <p style="color: #4B95AF; margin-top: 5px;">{{.Opts.PractitionerTitle}}</p>
  </div>
</div>

<button class="print-button" onclick="window.print()">Print Prescription</button>
</body>
</html>
`
