package export

import (
	"fmt"
	"io"

	"github.com/okian/co2charts/internal/domain/chart"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the exported chart.
const SheetName = "chart"

// WriteXLSX writes a workbook with a header row (year plus one column per
// series) and one row per axis year. Absent values are left empty.
func WriteXLSX(w io.Writer, p chart.Payload) error {
	if len(p.Series) == 0 {
		return ErrEmptyChart
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, 0, len(p.Series)+1)
	header = append(header, "year")
	for _, s := range p.Series {
		header = append(header, s.Name)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetColWidth(SheetName, "B", last, 22)

	for i, year := range p.Years {
		row := make([]any, 0, len(header))
		row = append(row, year)
		for _, s := range p.Series {
			if i < len(s.Data) && s.Data[i] != nil {
				row = append(row, *s.Data[i])
				continue
			}
			row = append(row, nil)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", year, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
