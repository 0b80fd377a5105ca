package core

import (
	"fmt"
	"time"
)

// Date is a calendar date at day granularity. The embedded time.Time is
// always midnight UTC so that two Dates built for the same calendar day
// compare equal regardless of where they came from.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(time.Now())
}

// DateOf truncates an arbitrary instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("date cannot be zero: %w", ErrInvalidInput)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Key returns the canonical YYYY-MM-DD form, used in cache keys and logs.
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// EpochDays returns the number of whole days since the Unix epoch.
// Dates before 1970 yield negative values, which is fine: the cache and
// the recurrence arithmetic only care about ordering and differences.
func (d Date) EpochDays() int64 {
	return d.Unix() / 86400
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonthsClamped adds n calendar months preserving day-of-month, clamped
// to the last valid day of the target month (Jan 31 + 1 month = Feb 28/29).
// time.AddDate normalizes overflow instead (Jan 31 + 1 month = Mar 2/3),
// which is never what a billing schedule wants.
func (d Date) AddMonthsClamped(n int) Date {
	y, m, day := d.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := lastDayOfMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return NewDate(target.Year(), int(target.Month()), day)
}

// AddYearsClamped adds n years, clamping Feb 29 anchors to Feb 28 on
// non-leap target years.
func (d Date) AddYearsClamped(n int) Date {
	y, m, day := d.Date()
	if last := lastDayOfMonth(y+n, m); day > last {
		day = last
	}
	return NewDate(y+n, int(m), day)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
