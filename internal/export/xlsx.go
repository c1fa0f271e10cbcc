// Package export writes pipeline results to spreadsheets.
package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	// DefaultSheetName is the worksheet excelize creates for a new workbook.
	DefaultSheetName = "Sheet1"

	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	minColWidth = 8
	maxColWidth = 80
)

// Sheet is a single worksheet: a fixed header followed by rows in order.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// MatchSheet builds the matcher worksheet.
func MatchSheet(name string, matches []models.Match) Sheet {
	rows := make([][]string, len(matches))
	for i, m := range matches {
		rows[i] = m.Cells()
	}
	return Sheet{Name: name, Columns: models.MatchColumns, Rows: rows}
}

// PrefixSheet builds the converter worksheet.
func PrefixSheet(name string, prefixRows []models.PrefixRow) Sheet {
	rows := make([][]string, len(prefixRows))
	for i, r := range prefixRows {
		rows[i] = r.Cells()
	}
	return Sheet{Name: name, Columns: models.PrefixColumns, Rows: rows}
}

// WriteXLSX writes sheet as a workbook to w. The header row is bold and
// column widths follow the longest cell, capped at maxColWidth. Cells longer
// than excelize.TotalCellChars are cut to fit.
func WriteXLSX(w io.Writer, sheet Sheet) error {
	name := sheet.Name
	if name == "" {
		name = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if name != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, name); err != nil {
			return fmt.Errorf("naming sheet %q: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("opening stream writer: %w", err)
	}

	for i, width := range columnWidths(sheet) {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	header := make([]interface{}, len(sheet.Columns))
	for i, c := range sheet.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = clip(v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// columnWidths tracks the widest cell per column, header included.
func columnWidths(sheet Sheet) []float64 {
	n := len(sheet.Columns)
	for _, row := range sheet.Rows {
		if len(row) > n {
			n = len(row)
		}
	}

	maxWidths := make([]int, n)
	track := func(i int, s string) {
		if l := utf8.RuneCountInString(s); l > maxWidths[i] {
			maxWidths[i] = l
		}
	}
	for i, c := range sheet.Columns {
		track(i, c)
	}
	for _, row := range sheet.Rows {
		for i, v := range row {
			track(i, v)
		}
	}

	widths := make([]float64, n)
	for i, l := range maxWidths {
		w := l + 2
		if w < minColWidth {
			w = minColWidth
		}
		if w > maxColWidth {
			w = maxColWidth
		}
		widths[i] = float64(w)
	}
	return widths
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
