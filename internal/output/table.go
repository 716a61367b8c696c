package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/notelens/notelens/internal/core"
)

const noteBodyWidth = 60

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatNotes renders notes newest-first, one row per note.
func (f *TableFormatter) FormatNotes(notes []core.Note) (string, error) {
	if len(notes) == 0 {
		return "No notes found.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Author", "Age", "Note"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Note", WidthMax: noteBodyWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, note := range notes {
		body := strings.ReplaceAll(note.Body, "\n", " ")
		t.AppendRow(table.Row{note.Author, note.Age, body})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d note(s)", len(notes))})

	return t.Render(), nil
}

// FormatContent renders task fields as key-value rows.
func (f *TableFormatter) FormatContent(content *core.TaskContent) (string, error) {
	if content == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Task", content.Name})
	t.AppendRow(table.Row{"Board", content.Board})
	t.AppendRow(table.Row{"Group", content.Group})

	columns := make([]string, 0, len(content.Columns))
	for id := range content.Columns {
		columns = append(columns, id)
	}
	sort.Strings(columns)
	for _, id := range columns {
		t.AppendRow(table.Row{id, content.Columns[id]})
	}

	return t.Render(), nil
}

// FormatUsage renders the retained daily fetch counters.
func (f *TableFormatter) FormatUsage(history []core.UsageDay) (string, error) {
	if len(history) == 0 {
		return "No usage recorded.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Day", "Fetches"})

	total := 0
	for _, day := range history {
		t.AppendRow(table.Row{day.Day, day.Count})
		total += day.Count
	}
	t.AppendFooter(table.Row{"total", total})

	return t.Render(), nil
}
