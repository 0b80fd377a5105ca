// Package services provides the business logic of the budgeting engine:
// recurring-template expansion, balance aggregation, and the cached store
// facade the UI layer talks to.
package services

import (
	"context"
	"fmt"

	"easybudget/internal/core"
)

// Overrides maps epoch days to explicit per-date amounts. The override set
// is built from already-materialized occurrences of a template: editing a
// recurring series going forward must not silently rewrite history.
type Overrides map[int64]core.Money

// Expander materializes Expense-shaped records from recurring templates.
type Expander struct{}

// NewExpander creates a recurring-template expander.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand produces the occurrences of tpl over the half-open range
// [start, end), in ascending date order. The anchor date itself is included
// when it falls inside the range. Overrides are consulted only when the
// template is marked modified; matching dates yield OccurrenceOverridden,
// all other dates OccurrenceGenerated with the template's original amount.
//
// Expansion is cancellable: ctx is checked on every step so an abandoned
// wide-range report stops promptly.
func (x *Expander) Expand(ctx context.Context, tpl core.RecurringTemplate, start, end core.Date, overrides Overrides) ([]core.Occurrence, error) {
	if !tpl.Granularity.IsRecurring() {
		return nil, fmt.Errorf("expand template %d: %w", tpl.ID, core.ErrInvalidTemplate)
	}
	if end.IsZero() || !start.Before(end.Time) {
		return nil, fmt.Errorf("expand template %d over [%s, %s): %w",
			tpl.ID, start.Key(), end.Key(), core.ErrInvalidRange)
	}
	if !tpl.AnchorDate.Before(end.Time) {
		return nil, nil
	}

	var out []core.Occurrence
	for n := x.firstStepAtOrAfter(tpl, start); ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("expand template %d: %w", tpl.ID, err)
		}
		d := tpl.Granularity.Nth(tpl.AnchorDate, n)
		if !d.Before(end.Time) {
			return out, nil
		}
		out = append(out, x.occurrenceAt(tpl, d, overrides))
	}
}

// occurrenceAt builds the synthetic occurrence of tpl on date d, applying
// the override amount when one exists and the template is marked modified.
func (x *Expander) occurrenceAt(tpl core.RecurringTemplate, d core.Date, overrides Overrides) core.Occurrence {
	occ := core.Occurrence{
		Kind:       core.OccurrenceGenerated,
		AccountID:  tpl.AccountID,
		Title:      tpl.Title,
		Amount:     tpl.OriginalAmount,
		Date:       d,
		TemplateID: tpl.ID,
	}
	if tpl.Modified {
		if amount, ok := overrides[d.EpochDays()]; ok {
			occ.Kind = core.OccurrenceOverridden
			occ.Amount = amount
		}
	}
	return occ
}

// firstStepAtOrAfter seeks the smallest step index n with
// Nth(anchor, n) >= start, without walking every step from the anchor. The
// arithmetic estimate undershoots on purpose; the short forward walk
// afterwards absorbs clamping.
func (x *Expander) firstStepAtOrAfter(tpl core.RecurringTemplate, start core.Date) int {
	anchor := tpl.AnchorDate
	if !anchor.Before(start.Time) {
		return 0
	}

	n := 0
	switch tpl.Granularity {
	case core.Daily, core.Weekly, core.BiWeekly, core.TerWeekly, core.FourWeekly:
		days := int(start.EpochDays() - anchor.EpochDays())
		step := int(tpl.Granularity.Nth(anchor, 1).EpochDays() - anchor.EpochDays())
		n = days / step
	case core.Monthly, core.BiMonthly, core.TerMonthly, core.SixMonthly:
		months := (start.Year()-anchor.Year())*12 + start.Month() - anchor.Month()
		perStep := map[core.Granularity]int{
			core.Monthly: 1, core.BiMonthly: 2, core.TerMonthly: 3, core.SixMonthly: 6,
		}[tpl.Granularity]
		n = months / perStep
	case core.Yearly:
		n = start.Year() - anchor.Year()
	}
	if n < 0 {
		n = 0
	}
	// The estimate may land a step past start when start falls mid-interval,
	// or short of it around clamped month ends. Settle exactly.
	for n > 0 && !tpl.Granularity.Nth(anchor, n-1).Before(start.Time) {
		n--
	}
	for tpl.Granularity.Nth(anchor, n).Before(start.Time) {
		n++
	}
	return n
}
