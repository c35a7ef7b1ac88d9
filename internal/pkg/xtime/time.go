package xtime

import "time"

func UTCNow() time.Time {
	return time.Now().UTC()
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the calendar date following t's date.
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// Period represents a time period with Start (inclusive) and End (exclusive).
// The period is a half-open interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// DayPeriod returns the half-open period covering t's calendar date,
// [00:00:00 that day, 00:00:00 next day) in UTC. Date filters compare at this
// granularity.
func DayPeriod(t time.Time) Period {
	return Period{Start: Day(t), End: NextDay(t)}
}
