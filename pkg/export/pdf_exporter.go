package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth    = 277.0
	pdfLabelWidth   = 30.0
	pdfRowHeight    = 12.0
	pdfHeaderHeight = 8.0
)

// PDFExporter renders grids onto a landscape A4 page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the grid with the title above it. Multi-line cell text is
// separated with "\n".
func (e *PDFExporter) Render(grid Grid) ([]byte, error) {
	if err := grid.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	colWidth := (pdfPageWidth - pdfLabelWidth) / float64(len(grid.Columns))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(220, 226, 240)
	pdf.CellFormat(pdfLabelWidth, pdfHeaderHeight, "", "1", 0, "C", true, 0, "")
	for _, column := range grid.Columns {
		pdf.CellFormat(colWidth, pdfHeaderHeight, column, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for _, row := range grid.Rows {
		x, y := pdf.GetXY()
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(pdfLabelWidth, pdfRowHeight, row.Label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 7)
		for i := range grid.Columns {
			cx := x + pdfLabelWidth + float64(i)*colWidth
			pdf.Rect(cx, y, colWidth, pdfRowHeight, "D")
			lines := strings.Split(row.cell(i), "\n")
			lineHeight := pdfRowHeight / float64(len(lines)+1)
			for j, line := range lines {
				pdf.SetXY(cx, y+lineHeight*float64(j)+lineHeight/2)
				pdf.CellFormat(colWidth, lineHeight, line, "", 0, "C", false, 0, "")
			}
		}
		pdf.SetXY(x, y+pdfRowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
