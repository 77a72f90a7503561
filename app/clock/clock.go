package clock

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar-date format used for all evaluation dates.
const DateLayout = "2006-01-02"

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// InBusinessZone shifts an instant into the business timezone, expressed as
// a fixed offset in hours east of UTC.
func InBusinessZone(t time.Time, offsetHours int) time.Time {
	loc := time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
	return t.UTC().In(loc)
}

// BusinessTime returns the current wall-clock time shifted into the business
// timezone.
func BusinessTime(offsetHours int) time.Time {
	return InBusinessZone(timeNow(), offsetHours)
}

// Today returns the current calendar date in the business timezone,
// truncated to midnight.
func Today(offsetHours int) time.Time {
	return Truncate(BusinessTime(offsetHours))
}

// CurrentHour returns the hour of day (0-23) in the business timezone.
func CurrentHour(offsetHours int) int {
	return BusinessTime(offsetHours).Hour()
}

// Truncate drops the time-of-day portion of t, keeping its location.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays shifts a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ParseDate parses a YYYY-MM-DD string into a midnight UTC date.
// The layout is strict: "2024-1-5" and out-of-range components are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a time as a YYYY-MM-DD string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf maps a time to its wall-clock calendar date at midnight UTC.
// Comparing the results of DateOf orders two values by calendar date alone,
// regardless of the zones they were resolved in.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar date,
// ignoring time of day and location offsets within each value.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
