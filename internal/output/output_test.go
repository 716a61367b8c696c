package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notelens/notelens/internal/core"
)

func sampleNotes() []core.Note {
	return []core.Note{
		{
			ID:        "u1",
			Author:    "Sam",
			Body:      "Shipping today",
			CreatedAt: time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC),
			Age:       "5 minutes ago",
		},
		{
			ID:        "u2",
			Author:    "Alex",
			Body:      "Blocked on review\nwill pick up tomorrow",
			CreatedAt: time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
			Age:       "1 day ago",
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = ParseFormat("yaml")
	require.Error(t, err)
}

func TestTableFormatNotes(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatNotes(sampleNotes())
	require.NoError(t, err)
	require.Contains(t, rendered, "Sam")
	require.Contains(t, rendered, "5 minutes ago")
	require.Contains(t, rendered, "2 note(s)")
	require.NotContains(t, rendered, "\nwill pick up", "newlines inside a body must not break rows")
}

func TestTableFormatNotesEmpty(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatNotes(nil)
	require.NoError(t, err)
	require.Equal(t, "No notes found.", rendered)
}

func TestTableFormatUsage(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatUsage([]core.UsageDay{
		{Day: "2026-03-01", Count: 3},
		{Day: "2026-02-28", Count: 5},
	})
	require.NoError(t, err)
	require.Contains(t, rendered, "2026-03-01")
	require.Contains(t, rendered, "8")
}

func TestJSONFormatNotesRoundTrips(t *testing.T) {
	rendered, err := (&JSONFormatter{Indent: true}).FormatNotes(sampleNotes())
	require.NoError(t, err)

	var decoded []core.Note
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "Sam", decoded[0].Author)
}
