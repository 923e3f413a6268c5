package timeutil

import (
	"strings"
	"time"
)

// DayWindow returns the inclusive UTC window [00:00:00, 23:59:59] for the
// calendar day of value.
func DayWindow(value time.Time) (since, until time.Time) {
	since = time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
	until = time.Date(value.Year(), value.Month(), value.Day(), 23, 59, 59, 0, time.UTC)
	return since, until
}

func StartOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// WeekStart returns the Monday of the week containing value, at midnight.
func WeekStart(value time.Time) time.Time {
	daysSinceMonday := (int(value.Weekday()) + 6) % 7
	return StartOfDay(value.AddDate(0, 0, -daysSinceMonday))
}

// WeekDates returns Monday through Friday of the week starting at monday.
func WeekDates(monday time.Time) []time.Time {
	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i)
	}
	return dates
}

// WeekNumber returns the ISO 8601 week number for value.
func WeekNumber(value time.Time) int {
	_, week := value.ISOWeek()
	return week
}

// ParseDateFlexible parses the date representations found in report cells:
// "2025/10/31", "2025/1/5", "2025-10-31" and the formatted datetimes that
// excelize surfaces for date-typed cells.
func ParseDateFlexible(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	layouts := []string{
		"2006/1/2",
		"2006-1-2",
		"2006/01/02",
		"2006-01-02",
		"01-02-06",
		"1/2/06 15:04",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// DatesMatch reports whether a cell value refers to the same calendar day as target.
func DatesMatch(cellValue string, target time.Time) bool {
	parsed, ok := ParseDateFlexible(cellValue)
	if !ok {
		return false
	}
	return SameDay(parsed, target)
}
