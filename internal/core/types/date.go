package types

import "time"

// DateOf truncates t to midnight in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AddDays adds calendar days, keeping the wall clock stable across DST changes.
func AddDays(d time.Time, days int) time.Time {
	return d.AddDate(0, 0, days)
}

// DaysBetween counts calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	a = DateOf(a, a.Location())
	b = DateOf(b, a.Location())
	days := 0
	for a.Before(b) {
		a = a.AddDate(0, 0, 1)
		days++
	}
	for a.After(b) {
		a = a.AddDate(0, 0, -1)
		days--
	}
	return days
}
