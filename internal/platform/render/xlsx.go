package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
)

const xlsxSheet = "Prescription"

// XLSXRenderer produces a single-sheet workbook: the identity block on top,
// then one row per medicine.
type XLSXRenderer struct {
	opts Options
}

func NewXLSXRenderer(opts Options) *XLSXRenderer {
	return &XLSXRenderer{opts: opts.withDefaults()}
}

func (r *XLSXRenderer) Render(ctx context.Context, doc *assembly.Document) (*assembly.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{
		{r.opts.Title},
		{"Date", doc.IssuedAt.Format("02/01/2006")},
		{},
		{"Patient", doc.Patient.Name},
		{"Age", doc.Patient.Age},
		{"Gender", doc.Patient.Gender},
		{"Symptoms", strings.Join(doc.Symptoms, "\n")},
		{"Health Conditions", strings.Join(conditionsOrNone(doc), "\n")},
		{},
	}
	header := []any{"#", "Medicine Name", "Dosage", "Timing", "Description", "Precautions"}
	if hasDuration(doc) {
		header = append(header, "Duration")
	}
	rows = append(rows, header)
	headerRow := len(rows)
	for i, m := range doc.Medicines {
		row := []any{i + 1, m.Name, m.Dosage, m.Timing, m.Description, m.Precautions}
		if hasDuration(doc) {
			row = append(row, m.Duration)
		}
		rows = append(rows, row)
	}
	rows = append(rows, []any{}, []any{"Doctor", "Dr. " + doc.Doctor.Name})
	if doc.Doctor.Registration != "" {
		rows = append(rows, []any{"Registration No", doc.Doctor.Registration})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(header), headerRow)
	if err != nil {
		return nil, fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(xlsxSheet, fmt.Sprintf("A%d", headerRow), last, bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(xlsxSheet, "B", "F", 28); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &assembly.Artifact{
		ContentType: ContentTypeXLSX,
		FileName:    fileName(doc, "xlsx"),
		Body:        buf.Bytes(),
	}, nil
}
