package clock

import (
	"testing"
	"time"
)

func TestInBusinessZone(t *testing.T) {
	// 2024-03-10 23:30 UTC is 2024-03-11 08:30 at UTC+9.
	instant := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	shifted := InBusinessZone(instant, 9)
	if shifted.Day() != 11 || shifted.Hour() != 8 {
		t.Errorf("Expected 2024-03-11 08:30, got %v", shifted)
	}

	// The instant itself is unchanged.
	if !shifted.Equal(instant) {
		t.Errorf("Zone shift must preserve the instant")
	}
}

func TestTodayCrossesDateLine(t *testing.T) {
	timeNow = func() time.Time {
		return time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	}
	defer func() { timeNow = time.Now }()

	if got := FormatDate(Today(9)); got != "2024-03-11" {
		t.Errorf("Expected business date 2024-03-11, got %s", got)
	}
	if got := FormatDate(Today(0)); got != "2024-03-10" {
		t.Errorf("Expected UTC date 2024-03-10, got %s", got)
	}
}

func TestCurrentHour(t *testing.T) {
	timeNow = func() time.Time {
		return time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	}
	defer func() { timeNow = time.Now }()

	if got := CurrentHour(9); got != 15 {
		t.Errorf("Expected hour 15 at UTC+9, got %d", got)
	}
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("2024-01-31")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if FormatDate(parsed) != "2024-01-31" {
		t.Errorf("Round trip failed: %s", FormatDate(parsed))
	}

	invalid := []string{"2024-1-5", "2024/01/05", "2024-13-01", "2024-02-30", "not a date", ""}
	for _, input := range invalid {
		if _, err := ParseDate(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestDateOfComparesAcrossZones(t *testing.T) {
	// The same instant shows different wall dates in different zones.
	instant := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	business := InBusinessZone(instant, 9)

	if DateOf(instant).Equal(DateOf(business)) {
		t.Error("Expected different wall dates near the date line")
	}
	if !DateOf(business).After(DateOf(instant)) {
		t.Error("Expected the business date to order after the UTC date")
	}

	// Well away from midnight the dates agree.
	noon := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	if !DateOf(noon).Equal(DateOf(InBusinessZone(noon, 9))) {
		t.Error("Expected the same wall date away from midnight")
	}
}

func TestAddDays(t *testing.T) {
	base := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(AddDays(base, 30)); got != "2024-03-01" {
		t.Errorf("Expected 2024-03-01 (leap year), got %s", got)
	}
	if got := FormatDate(AddDays(base, -31)); got != "2023-12-31" {
		t.Errorf("Expected 2023-12-31, got %s", got)
	}
}

func TestSameDate(t *testing.T) {
	a := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	if !SameDate(a, b) {
		t.Error("Expected same date regardless of time of day")
	}
	if SameDate(a, AddDays(b, 1)) {
		t.Error("Expected different dates")
	}
}
