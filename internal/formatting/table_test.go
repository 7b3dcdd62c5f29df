package formatting

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
)

func TestNewTableRendersToWriter(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf)
	tbl.AppendHeader(Header("ID", "NAME"))
	tbl.AppendRow(table.Row{"mod-b-1.0.0", "mod-b"})
	tbl.Render()

	out := buf.String()
	if !strings.Contains(out, "mod-b-1.0.0") {
		t.Errorf("Expected rendered table to contain the row, got:\n%s", out)
	}
}

func TestHeaderWidth(t *testing.T) {
	row := Header("A", "B", "C")
	if len(row) != 3 {
		t.Errorf("Expected 3 columns, got %d", len(row))
	}
}

func TestNotice(t *testing.T) {
	if !strings.Contains(Notice("no session"), "no session") {
		t.Error("Expected notice to carry the message")
	}
}
