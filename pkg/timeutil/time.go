package timeutil

import "time"

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time.Time to UTC if it isn't already
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// AddDays returns t shifted by the given number of calendar days, in UTC.
// Used for subscription period arithmetic.
func AddDays(t time.Time, days int) time.Time {
	return t.UTC().AddDate(0, 0, days)
}
