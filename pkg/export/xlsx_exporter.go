package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders grids into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the title in row 1, column headers in row 2 and one row per
// grid row below them.
func (e *XLSXExporter) Render(grid Grid, sheet string) ([]byte, error) {
	if err := grid.validate(); err != nil {
		return nil, err
	}
	if sheet == "" {
		sheet = "Timetable"
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if sheet != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}

	lastCol := columnName(len(grid.Columns) + 1)
	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return nil, fmt.Errorf("set label width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", lastCol, 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DCE2F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("body style: %w", err)
	}

	if grid.Title != "" {
		if err := f.SetCellValue(sheet, "A1", grid.Title); err != nil {
			return nil, err
		}
		if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", "A1", headerStyle); err != nil {
			return nil, err
		}
	}

	for i, column := range grid.Columns {
		if err := f.SetCellValue(sheet, cellName(i+2, 2), column); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle); err != nil {
		return nil, err
	}

	for r, row := range grid.Rows {
		rowNum := r + 3
		if err := f.SetCellValue(sheet, cellName(1, rowNum), row.Label); err != nil {
			return nil, err
		}
		for i := range grid.Columns {
			if err := f.SetCellValue(sheet, cellName(i+2, rowNum), row.cell(i)); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellStyle(sheet, cellName(2, rowNum), cellName(len(grid.Columns)+1, rowNum), bodyStyle); err != nil {
			return nil, err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func columnName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx)
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
