package export

import "fmt"

// GridRow is one labelled row of a weekly grid, e.g. a weekday.
type GridRow struct {
	Label string
	Cells []string
}

// Grid is a two dimensional table: Columns name the time marks, Rows carry
// one cell per column.
type Grid struct {
	Title   string
	Columns []string
	Rows    []GridRow
}

func (g Grid) validate() error {
	if len(g.Columns) == 0 {
		return fmt.Errorf("grid requires at least one column")
	}
	for _, row := range g.Rows {
		if len(row.Cells) > len(g.Columns) {
			return fmt.Errorf("grid row %q has %d cells for %d columns", row.Label, len(row.Cells), len(g.Columns))
		}
	}
	return nil
}

func (r GridRow) cell(i int) string {
	if i < len(r.Cells) {
		return r.Cells[i]
	}
	return ""
}
