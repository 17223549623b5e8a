package entities

import "time"

// A calendar date is represented as UTC midnight of the user's local date,
// the same convention the date columns use in storage.

// LocalDate returns the calendar date of t in loc.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in the user's timezone.
// Unknown timezones resolve to UTC.
func Today(tz string, now time.Time) time.Time {
	loc, _ := LocationOrUTC(tz)
	return LocalDate(now, loc)
}

// IsNewDay reports whether the calendar date today is past last.
// A missing last date counts as a new day.
func IsNewDay(last *time.Time, today time.Time) bool {
	return last == nil || today.After(*last)
}

// DayEnd returns the instant date ends in loc, i.e. the next local midnight.
func DayEnd(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, loc)
}
