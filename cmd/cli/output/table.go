package output

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable prints a table of rows to stdout. An empty row set still
// renders the header so scripted callers get a stable shape.
func RenderTable(headers []string, rows [][]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, 0, len(headers))
	for _, h := range headers {
		headerRow = append(headerRow, h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
}
