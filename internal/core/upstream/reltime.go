package upstream

import (
	"fmt"
	"time"
)

// RelativeAge renders a human-readable age for a note timestamp.
//
// Under a minute reads "just now"; minutes, hours, days, weeks, and months
// are pluralized "N <unit> ago"; anything a year or older falls back to the
// absolute date so stale notes are unambiguous.
func RelativeAge(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		elapsed = 0
	}

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed/time.Minute), "minute")
	case elapsed < 24*time.Hour:
		return plural(int(elapsed/time.Hour), "hour")
	case elapsed < 7*24*time.Hour:
		return plural(int(elapsed/(24*time.Hour)), "day")
	case elapsed < 30*24*time.Hour:
		return plural(int(elapsed/(7*24*time.Hour)), "week")
	case elapsed < 365*24*time.Hour:
		return plural(int(elapsed/(30*24*time.Hour)), "month")
	default:
		return createdAt.Format("Jan 2, 2006")
	}
}

func plural(count int, unit string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", count, unit)
}
