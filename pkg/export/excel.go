package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Column is one column of an exported sheet.
type Column struct {
	Key   string
	Label string
	// Width overrides the automatic width when positive.
	Width float64
}

// ExcelOptions configures the sheet
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	DateFormat   string
	HeaderFill   string
	HeaderFont   string
}

// DefaultExcelOptions returns the register layout
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Registro",
		FreezeHeader: true,
		AutoFilter:   true,
		DateFormat:   "dd/mm/yyyy hh:mm",
		HeaderFill:   "1F4E78",
		HeaderFont:   "FFFFFF",
	}
}

// ExcelExporter writes a single-sheet XLSX workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	columns []Column
}

func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	return &ExcelExporter{file: file, options: options}, nil
}

// WriteHeader writes the column labels on the first row.
func (e *ExcelExporter) WriteHeader(columns []Column) error {
	e.columns = columns
	sheet := e.options.SheetName

	style, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: e.options.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{e.options.HeaderFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col.Label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		e.file.SetCellStyle(sheet, cell, cell, style)
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// WriteRows writes rows below the header, in column order.
func (e *ExcelExporter) WriteRows(rows []map[string]interface{}) error {
	sheet := e.options.SheetName

	dateStyle, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.DateFormat})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(e.columns))
	for i, col := range e.columns {
		widths[i] = float64(utf8.RuneCountInString(col.Label)) + 2
	}

	for r, row := range rows {
		for c, col := range e.columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			val := row[col.Key]

			switch v := val.(type) {
			case nil:
				continue
			case time.Time:
				if v.IsZero() {
					continue
				}
				e.file.SetCellValue(sheet, cell, v)
				e.file.SetCellStyle(sheet, cell, cell, dateStyle)
				if widths[c] < 18 {
					widths[c] = 18
				}
			case *time.Time:
				if v == nil {
					continue
				}
				e.file.SetCellValue(sheet, cell, *v)
				e.file.SetCellStyle(sheet, cell, cell, dateStyle)
				if widths[c] < 18 {
					widths[c] = 18
				}
			default:
				if err := e.file.SetCellValue(sheet, cell, v); err != nil {
					return fmt.Errorf("failed to set cell value: %w", err)
				}
				if w := float64(utf8.RuneCountInString(fmt.Sprint(v))) + 2; w > widths[c] {
					widths[c] = w
				}
			}
		}
	}

	for i, col := range e.columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		w := widths[i]
		if col.Width > 0 {
			w = col.Width
		}
		if w > 60 {
			w = 60
		}
		e.file.SetColWidth(sheet, name, name, w)
	}

	if e.options.AutoFilter && len(e.columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(e.columns), len(rows)+1)
		e.file.AutoFilter(sheet, "A1:"+last, nil)
	}
	return nil
}

func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

func (e *ExcelExporter) Close() error {
	return e.file.Close()
}
