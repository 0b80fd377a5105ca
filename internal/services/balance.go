package services

import (
	"fmt"

	"easybudget/internal/core"
)

// Delta is one dated signed amount feeding balance aggregation.
type Delta struct {
	Date   core.Date
	Amount core.Money
}

// Aggregator folds dated amounts into running balances. All arithmetic is
// integer cents; callers convert to decimal only at the display boundary.
type Aggregator struct{}

// NewAggregator creates a balance aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// RunningBalance returns base plus the sum of all deltas, folded left in
// the order given. Deltas must already be in ascending date order; order
// among same-date entries does not matter since only the per-day total is
// ever observed.
func (a *Aggregator) RunningBalance(base core.Money, deltas []Delta) core.Money {
	total := base
	for _, d := range deltas {
		total = total.Add(d.Amount)
	}
	return total
}

// RangeDelta sums the amounts with from <= date < to. An inverted range is
// a programming error and fails fast; an empty range (from == to) sums to
// zero.
func (a *Aggregator) RangeDelta(deltas []Delta, from, to core.Date) (core.Money, error) {
	if to.Before(from.Time) {
		return core.Money{}, fmt.Errorf("range delta over [%s, %s): %w",
			from.Key(), to.Key(), core.ErrInvalidRange)
	}
	var total core.Money
	for _, d := range deltas {
		if !d.Date.Before(from.Time) && d.Date.Before(to.Time) {
			total = total.Add(d.Amount)
		}
	}
	return total, nil
}
