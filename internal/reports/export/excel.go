package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	excelSheet     = "Report"
	excelAmountFmt = 4 // #,##0.00
)

// Excel writes the document to a single-sheet workbook. Sections are stacked
// vertically with a blank row between them.
func Excel(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: excelAmountFmt})
	if err != nil {
		return nil, err
	}
	boldMoney, err := f.NewStyle(&excelize.Style{NumFmt: excelAmountFmt, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	row := 1
	header := []any{doc.Title}
	if err := writeRow(f, row, header, bold); err != nil {
		return nil, err
	}
	row++
	if err := writeRow(f, row, []any{doc.Period}, 0); err != nil {
		return nil, err
	}
	row += 2

	width := 1
	for _, sec := range doc.Sections {
		if sec.Title != "" {
			if err := writeRow(f, row, []any{sec.Title}, bold); err != nil {
				return nil, err
			}
			row++
		}
		if err := writeRow(f, row, stringsToAny(sec.Headers), bold); err != nil {
			return nil, err
		}
		row++
		if len(sec.Headers) > width {
			width = len(sec.Headers)
		}
		for _, cells := range sec.Rows {
			if err := writeCells(f, row, cells, money); err != nil {
				return nil, err
			}
			row++
		}
		if len(sec.Totals) > 0 {
			if err := writeCells(f, row, sec.Totals, boldMoney); err != nil {
				return nil, err
			}
			row++
		}
		row++
	}
	for _, note := range doc.Notes {
		if err := writeRow(f, row, []any{note}, 0); err != nil {
			return nil, err
		}
		row++
	}

	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(excelSheet, "A", last, 18); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("excel write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(excelSheet, start, &values); err != nil {
		return err
	}
	if style == 0 || len(values) == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(excelSheet, start, end, style)
}

func writeCells(f *excelize.File, row int, cells []Cell, amountStyle int) error {
	for i, c := range cells {
		name, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if !c.IsAmount {
			if err := f.SetCellStr(excelSheet, name, c.Text); err != nil {
				return err
			}
			continue
		}
		if err := f.SetCellFloat(excelSheet, name, c.Amount.InexactFloat64(), 2, 64); err != nil {
			return err
		}
		if err := f.SetCellStyle(excelSheet, name, name, amountStyle); err != nil {
			return err
		}
	}
	return nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
