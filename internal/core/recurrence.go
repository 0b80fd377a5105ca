package core

import "fmt"

const (
	None       Granularity = "none"
	Daily      Granularity = "daily"
	Weekly     Granularity = "weekly"
	BiWeekly   Granularity = "biweekly"
	TerWeekly  Granularity = "terweekly"
	FourWeekly Granularity = "fourweekly"
	Monthly    Granularity = "monthly"
	BiMonthly  Granularity = "bimonthly"
	TerMonthly Granularity = "termonthly"
	SixMonthly Granularity = "sixmonthly"
	Yearly     Granularity = "yearly"
)

// Granularity is the interval unit of a recurring template. None marks a
// template that is not recurring at all; stepping a None granularity is a
// programming error, not a recoverable condition.
type Granularity string

// stepDays is the fixed day stride of the day-based granularities.
var stepDays = map[Granularity]int{
	Daily:      1,
	Weekly:     7,
	BiWeekly:   14,
	TerWeekly:  21,
	FourWeekly: 28,
}

// stepMonths is the month stride of the month-based granularities.
var stepMonths = map[Granularity]int{
	Monthly:    1,
	BiMonthly:  2,
	TerMonthly: 3,
	SixMonthly: 6,
}

func (g Granularity) Validate() error {
	switch g {
	case None, Daily, Weekly, BiWeekly, TerWeekly, FourWeekly,
		Monthly, BiMonthly, TerMonthly, SixMonthly, Yearly:
		return nil
	}
	return fmt.Errorf("unknown granularity %q: %w", g, ErrInvalidInput)
}

// IsRecurring reports whether the granularity produces a schedule.
func (g Granularity) IsRecurring() bool {
	return g != None && g.Validate() == nil
}

// Advance returns the next occurrence strictly after d. Month-based
// granularities clamp to the last valid day of the target month; Yearly
// clamps Feb 29 anchors to Feb 28 on non-leap years.
func (g Granularity) Advance(d Date) Date {
	if days, ok := stepDays[g]; ok {
		return d.AddDays(days)
	}
	if months, ok := stepMonths[g]; ok {
		return d.AddMonthsClamped(months)
	}
	if g == Yearly {
		return d.AddYearsClamped(1)
	}
	panic("advance on non-recurring granularity " + string(g))
}

// Retreat is the structural inverse of Advance: the previous occurrence
// strictly before d, subject to the same clamping.
func (g Granularity) Retreat(d Date) Date {
	if days, ok := stepDays[g]; ok {
		return d.AddDays(-days)
	}
	if months, ok := stepMonths[g]; ok {
		return d.AddMonthsClamped(-months)
	}
	if g == Yearly {
		return d.AddYearsClamped(-1)
	}
	panic("retreat on non-recurring granularity " + string(g))
}

// Nth returns the n-th occurrence counted from the anchor (Nth(a, 0) == a).
// Each target is clamped independently against the anchor's day-of-month,
// so a Jan 31 monthly anchor yields Feb 28 then Mar 31: a clamped step does
// not permanently lose the anchor day the way repeated Advance would.
func (g Granularity) Nth(anchor Date, n int) Date {
	if days, ok := stepDays[g]; ok {
		return anchor.AddDays(n * days)
	}
	if months, ok := stepMonths[g]; ok {
		return anchor.AddMonthsClamped(n * months)
	}
	if g == Yearly {
		return anchor.AddYearsClamped(n)
	}
	panic("nth on non-recurring granularity " + string(g))
}
