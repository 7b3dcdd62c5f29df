// Package formatting holds the shared table and message styling for CLI
// output.
package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable creates a table writer with the house style, mirrored to out.
func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

// Header styles a table header row.
func Header(columns ...string) table.Row {
	row := make(table.Row, 0, len(columns))
	for _, c := range columns {
		row = append(row, text.FgHiCyan.Sprint(c))
	}
	return row
}

// Notice formats an attention-worthy but non-fatal message.
func Notice(message string) string {
	return fmt.Sprintf("%s %s", text.FgYellow.Sprint("!"), text.FgYellow.Sprint(message))
}

// Good styles a healthy value.
func Good(value string) string {
	return text.FgGreen.Sprint(value)
}

// Bad styles an expired or failing value.
func Bad(value string) string {
	return text.FgRed.Sprint(value)
}
