package review

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	answersSheet   = "Application"
	documentsSheet = "Documents"
)

var (
	answerColumns   = []string{"Step", "Field", "Value", "Note"}
	documentColumns = []string{"Document", "Mandatory", "File", "Reference ID", "ID Status", "Text Check"}
)

// WriteXLSX writes the review as a two-sheet workbook.
func WriteXLSX(w io.Writer, r *Review) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), answersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return fmt.Errorf("create documents sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	answers := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		answers = append(answers, []any{row.Step, row.Label, row.Value, row.Note})
	}
	if err := writeTable(f, answersSheet, answerColumns, answers, header); err != nil {
		return err
	}

	docs := make([][]any, 0, len(r.Documents))
	for _, d := range r.Documents {
		docs = append(docs, []any{d.Label, formatBool(d.Mandatory), d.File, d.ReferenceID, d.IDStatus, d.TextCheck})
	}
	if err := writeTable(f, documentsSheet, documentColumns, docs, header); err != nil {
		return err
	}

	if err := f.SetColWidth(answersSheet, "A", "D", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(documentsSheet, "A", "F", 24); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: r.Title, Creator: "permitflow"}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, columns []string, rows [][]any, headerStyle int) error {
	headerRow := make([]any, len(columns))
	for i, c := range columns {
		headerRow[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
