package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	// Headers returns the column headers for the table.
	Headers() []string
	// Rows returns the data rows for the table.
	Rows() [][]string
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	tableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// PrintTable writes data as a left-aligned, column-padded table to the
// writer, styling the header row with lipgloss.
func PrintTable(w io.Writer, data TableRenderer) error {
	return printTable(w, data.Headers(), data.Rows())
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
		widths[i] = len(upper[i])
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if _, err := fmt.Fprintln(w, tableHeaderStyle.Render(padRow(upper, widths))); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, tableCellStyle.Render(padRow(row, widths))); err != nil {
			return err
		}
	}
	return nil
}

func padRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(cell)
		if pad := w - len(cell); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
	}
	return b.String()
}

// TableData is a simple implementation of TableRenderer for ad-hoc tables.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{
		headers: headers,
		rows:    make([][]string, 0),
	}
}

// AddRow adds a row to the table.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Headers implements TableRenderer.
func (t *TableData) Headers() []string {
	return t.headers
}

// Rows implements TableRenderer.
func (t *TableData) Rows() [][]string {
	return t.rows
}

// SimpleTable prints a colon-separated key/value table, for ad-hoc
// single-record dumps (e.g. "edlctl info").
func SimpleTable(w io.Writer, pairs [][2]string) error {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	keyStyle := lipgloss.NewStyle().Bold(true)
	for _, p := range pairs {
		key := p[0] + strings.Repeat(" ", width-len(p[0]))
		if _, err := fmt.Fprintf(w, "%s : %s\n", keyStyle.Render(key), p[1]); err != nil {
			return err
		}
	}
	return nil
}
