// Package recurrence computes occurrence timestamps for recurring task
// templates. All functions are pure: same rule and reference in, same
// timestamp out, no side effects.
package recurrence

import (
	"fmt"
	"time"

	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
)

// Rule is one recurrence schedule. Weekday is consulted only for weekly
// rules, DayOfMonth only for monthly and quarterly ones.
type Rule struct {
	Kind       constants.RecurrenceKind
	Weekday    int    // 0 = Sunday .. 6 = Saturday
	DayOfMonth int    // 1..31, clamped to shorter target months
	TimeOfDay  string // "HH:mm"
	Timezone   string // IANA zone name, e.g. "Asia/Bangkok"
}

func (r Rule) Validate() error {
	if !r.Kind.Valid() {
		return apperrors.NewInvalidSchedule(fmt.Sprintf("unknown recurrence kind %q", r.Kind))
	}
	if r.Kind == constants.RecurWeekly && (r.Weekday < 0 || r.Weekday > 6) {
		return apperrors.NewInvalidSchedule(fmt.Sprintf("weekday %d out of range 0-6", r.Weekday))
	}
	if r.Kind != constants.RecurWeekly && (r.DayOfMonth < 1 || r.DayOfMonth > 31) {
		return apperrors.NewInvalidSchedule(fmt.Sprintf("day of month %d out of range 1-31", r.DayOfMonth))
	}
	if _, _, err := parseTimeOfDay(r.TimeOfDay); err != nil {
		return err
	}
	if _, err := r.Location(); err != nil {
		return err
	}
	return nil
}

func (r Rule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, apperrors.NewInvalidSchedule(fmt.Sprintf("unknown time zone %q", r.Timezone))
	}
	return loc, nil
}

// NextOccurrence returns the occurrence following ref. Ref is the previous
// occurrence (or the template's creation-time anchor), never "now": advancing
// from the fired occurrence keeps the series drift-free regardless of
// scheduler delay.
//
// Monthly and quarterly rules re-clamp from the nominal DayOfMonth every
// cycle: a day-31 rule fired on Feb 29 lands on Mar 31, not Mar 29.
func NextOccurrence(rule Rule, ref time.Time) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}
	if ref.IsZero() {
		return time.Time{}, apperrors.NewInvalidSchedule("reference time is not set")
	}

	loc, err := rule.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := ref.In(loc)

	var year int
	var month time.Month
	var day int

	switch rule.Kind {
	case constants.RecurWeekly:
		next := local.AddDate(0, 0, 7)
		year, month, day = next.Date()
	case constants.RecurMonthly:
		year, month, day = addMonthsClamped(local, 1, rule.DayOfMonth)
	case constants.RecurQuarterly:
		year, month, day = addMonthsClamped(local, 3, rule.DayOfMonth)
	}

	hour, minute, _ := parseTimeOfDay(rule.TimeOfDay)
	return time.Date(year, month, day, hour, minute, 0, 0, loc), nil
}

// FirstOccurrence returns the smallest timestamp strictly after from that is
// consistent with the rule. Used once, when a template is created, to anchor
// NextRunAt.
func FirstOccurrence(rule Rule, from time.Time) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}
	if from.IsZero() {
		return time.Time{}, apperrors.NewInvalidSchedule("reference time is not set")
	}

	loc, err := rule.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := from.In(loc)
	hour, minute, _ := parseTimeOfDay(rule.TimeOfDay)

	if rule.Kind == constants.RecurWeekly {
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		for i := 0; i < 7; i++ {
			if int(candidate.Weekday()) == rule.Weekday && candidate.After(from) {
				return candidate, nil
			}
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil
	}

	day := clampDay(local.Year(), local.Month(), rule.DayOfMonth)
	candidate := time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, loc)
	for !candidate.After(from) {
		candidate, err = NextOccurrence(rule, candidate)
		if err != nil {
			return time.Time{}, err
		}
	}
	return candidate, nil
}

func addMonthsClamped(ref time.Time, months, nominalDay int) (int, time.Month, int) {
	// Jump via the first of the target month so a short month never rolls
	// the date into the month after it.
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).AddDate(0, months, 0)
	year, month := first.Year(), first.Month()
	return year, month, clampDay(year, month, nominalDay)
}

func clampDay(year int, month time.Month, nominalDay int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if nominalDay > last {
		return last
	}
	return nominalDay
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, apperrors.NewInvalidSchedule(fmt.Sprintf("time of day %q is not HH:mm", s))
	}
	return t.Hour(), t.Minute(), nil
}
