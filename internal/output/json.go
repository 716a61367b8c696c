package output

import (
	"encoding/json"

	"github.com/notelens/notelens/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatNotes renders notes as a JSON array.
func (f *JSONFormatter) FormatNotes(notes []core.Note) (string, error) {
	return f.render(notes)
}

// FormatContent renders a task as a JSON object.
func (f *JSONFormatter) FormatContent(content *core.TaskContent) (string, error) {
	return f.render(content)
}

// FormatUsage renders usage history as a JSON array.
func (f *JSONFormatter) FormatUsage(history []core.UsageDay) (string, error) {
	return f.render(history)
}

func (f *JSONFormatter) render(v interface{}) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
