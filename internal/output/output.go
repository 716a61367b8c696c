// Package output renders notes, task content, and usage stats for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/notelens/notelens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter renders fetched data for the terminal.
type Formatter interface {
	FormatNotes(notes []core.Note) (string, error)
	FormatContent(content *core.TaskContent) (string, error)
	FormatUsage(history []core.UsageDay) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	default:
		return &TableFormatter{}
	}
}
