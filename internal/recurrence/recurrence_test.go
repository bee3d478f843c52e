package recurrence

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

func TestNextOccurrence_Weekly(t *testing.T) {
	bkk := mustZone(t, "Asia/Bangkok")
	rule := Rule{
		Kind:      constants.RecurWeekly,
		Weekday:   1, // Monday
		TimeOfDay: "09:00",
		Timezone:  "Asia/Bangkok",
	}

	fired := time.Date(2024, 1, 1, 9, 0, 0, 0, bkk) // Monday
	next, err := NextOccurrence(rule, fired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2024, 1, 8, 9, 0, 0, 0, bkk)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestNextOccurrence_MonthlyClampsToShortMonth(t *testing.T) {
	bkk := mustZone(t, "Asia/Bangkok")
	rule := Rule{
		Kind:       constants.RecurMonthly,
		DayOfMonth: 31,
		TimeOfDay:  "10:00",
		Timezone:   "Asia/Bangkok",
	}

	jan := time.Date(2024, 1, 31, 10, 0, 0, 0, bkk)
	feb, err := NextOccurrence(rule, jan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2024 is a leap year.
	if want := time.Date(2024, 2, 29, 10, 0, 0, 0, bkk); !feb.Equal(want) {
		t.Errorf("expected %s, got %s", want, feb)
	}

	// Re-clamping works from the nominal day 31, so March recovers to 31
	// instead of degrading to 29.
	mar, err := NextOccurrence(rule, feb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 31, 10, 0, 0, 0, bkk); !mar.Equal(want) {
		t.Errorf("expected %s, got %s", want, mar)
	}
}

func TestNextOccurrence_Quarterly(t *testing.T) {
	rule := Rule{
		Kind:       constants.RecurQuarterly,
		DayOfMonth: 31,
		TimeOfDay:  "08:30",
		Timezone:   "UTC",
	}

	nov := time.Date(2023, 11, 30, 8, 30, 0, 0, time.UTC)
	next, err := NextOccurrence(rule, nov)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Nov + 3 months = Feb; 2024 is a leap year so day 31 clamps to 29.
	if want := time.Date(2024, 2, 29, 8, 30, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestNextOccurrence_InvalidInputs(t *testing.T) {
	valid := Rule{Kind: constants.RecurWeekly, Weekday: 1, TimeOfDay: "09:00", Timezone: "UTC"}

	cases := []struct {
		name string
		rule Rule
		ref  time.Time
	}{
		{"zero reference", valid, time.Time{}},
		{"bad kind", Rule{Kind: "daily", TimeOfDay: "09:00", Timezone: "UTC"}, time.Now()},
		{"weekday out of range", Rule{Kind: constants.RecurWeekly, Weekday: 7, TimeOfDay: "09:00", Timezone: "UTC"}, time.Now()},
		{"day of month out of range", Rule{Kind: constants.RecurMonthly, DayOfMonth: 32, TimeOfDay: "09:00", Timezone: "UTC"}, time.Now()},
		{"bad time of day", Rule{Kind: constants.RecurWeekly, Weekday: 1, TimeOfDay: "25:99", Timezone: "UTC"}, time.Now()},
		{"bad zone", Rule{Kind: constants.RecurWeekly, Weekday: 1, TimeOfDay: "09:00", Timezone: "Mars/Olympus"}, time.Now()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NextOccurrence(tc.rule, tc.ref)
			if !apperrors.IsInvalidSchedule(err) {
				t.Errorf("expected invalid schedule error, got %v", err)
			}
		})
	}
}

func TestFirstOccurrence_Weekly(t *testing.T) {
	bkk := mustZone(t, "Asia/Bangkok")
	rule := Rule{Kind: constants.RecurWeekly, Weekday: 1, TimeOfDay: "09:00", Timezone: "Asia/Bangkok"}

	// Wednesday; the next Monday 09:00 is Jan 8.
	from := time.Date(2024, 1, 3, 12, 0, 0, 0, bkk)
	first, err := FirstOccurrence(rule, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 8, 9, 0, 0, 0, bkk); !first.Equal(want) {
		t.Errorf("expected %s, got %s", want, first)
	}

	// Monday before 09:00: fires later the same day.
	from = time.Date(2024, 1, 8, 8, 0, 0, 0, bkk)
	first, err = FirstOccurrence(rule, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 8, 9, 0, 0, 0, bkk); !first.Equal(want) {
		t.Errorf("expected %s, got %s", want, first)
	}
}

func TestFirstOccurrence_MonthlySkipsPastDay(t *testing.T) {
	rule := Rule{Kind: constants.RecurMonthly, DayOfMonth: 15, TimeOfDay: "09:00", Timezone: "UTC"}

	from := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	first, err := FirstOccurrence(rule, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC); !first.Equal(want) {
		t.Errorf("expected %s, got %s", want, first)
	}
}

// A rule with a day past 28 iterated across a full year must only ever land
// on valid dates: the requested day when the month has it, the month's last
// day otherwise, and always in the expected month.
func TestNextOccurrence_ClampProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		day := rapid.IntRange(29, 31).Draw(t, "day")
		startYear := rapid.IntRange(2020, 2030).Draw(t, "year")
		startMonth := rapid.IntRange(1, 12).Draw(t, "month")
		kind := constants.RecurMonthly
		step := 1
		if rapid.Bool().Draw(t, "quarterly") {
			kind = constants.RecurQuarterly
			step = 3
		}

		rule := Rule{Kind: kind, DayOfMonth: day, TimeOfDay: "09:00", Timezone: "UTC"}

		current := time.Date(startYear, time.Month(startMonth), 1, 9, 0, 0, 0, time.UTC)
		expectMonth := current.Month()
		expectYear := current.Year()

		for i := 0; i < 12; i++ {
			next, err := NextOccurrence(rule, current)
			if err != nil {
				t.Fatalf("iteration %d: %v", i, err)
			}

			expectMonth += time.Month(step)
			for expectMonth > 12 {
				expectMonth -= 12
				expectYear++
			}
			if next.Month() != expectMonth || next.Year() != expectYear {
				t.Fatalf("iteration %d: drifted to %s, expected %d-%d", i, next, expectYear, expectMonth)
			}

			last := time.Date(next.Year(), next.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
			wantDay := day
			if wantDay > last {
				wantDay = last
			}
			if next.Day() != wantDay {
				t.Fatalf("iteration %d: day %d, expected %d (month has %d days)", i, next.Day(), wantDay, last)
			}

			current = next
		}
	})
}
