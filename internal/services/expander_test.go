package services

import (
	"context"
	"errors"
	"testing"

	"easybudget/internal/core"
)

func monthlyTemplate() core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:             1,
		AccountID:      1,
		Title:          "Rent",
		OriginalAmount: core.Money{Cents: 85000},
		AnchorDate:     core.NewDate(2024, 1, 31),
		Granularity:    core.Monthly,
	}
}

func TestExpandDaily(t *testing.T) {
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.Granularity = core.Daily
	tpl.AnchorDate = core.NewDate(2024, 1, 1)

	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 4), nil)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("Expand() returned %d occurrences, want 3", len(occs))
	}
	for i, occ := range occs {
		want := core.NewDate(2024, 1, 1+i)
		if !occ.Date.Equal(want.Time) {
			t.Errorf("occurrence %d date = %s, want %s", i, occ.Date.Key(), want.Key())
		}
		if occ.Kind != core.OccurrenceGenerated {
			t.Errorf("occurrence %d kind = %s, want generated", i, occ.Kind)
		}
		if occ.Amount != tpl.OriginalAmount {
			t.Errorf("occurrence %d amount = %d, want %d", i, occ.Amount.Cents, tpl.OriginalAmount.Cents)
		}
		if occ.TemplateID != tpl.ID {
			t.Errorf("occurrence %d template id = %d, want %d", i, occ.TemplateID, tpl.ID)
		}
	}
}

func TestExpandMonthlyClamping(t *testing.T) {
	// A Jan 31 anchor yields Feb 29 (leap) but returns to the 31st in March.
	x := NewExpander()
	tpl := monthlyTemplate()

	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 5, 1), nil)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}

	want := []core.Date{
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 31),
		core.NewDate(2024, 4, 30),
	}
	if len(occs) != len(want) {
		t.Fatalf("Expand() returned %d occurrences, want %d", len(occs), len(want))
	}
	for i, occ := range occs {
		if !occ.Date.Equal(want[i].Time) {
			t.Errorf("occurrence %d date = %s, want %s", i, occ.Date.Key(), want[i].Key())
		}
	}
}

func TestExpandRangeExcludesEnd(t *testing.T) {
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.Granularity = core.Weekly
	tpl.AnchorDate = core.NewDate(2024, 1, 1)

	// End date itself must not be included: [Jan 1, Jan 8) has one occurrence.
	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 8), nil)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	if len(occs) != 1 || !occs[0].Date.Equal(core.NewDate(2024, 1, 1).Time) {
		t.Fatalf("Expand() = %v, want exactly the Jan 1 occurrence", occs)
	}
}

func TestExpandStartMidInterval(t *testing.T) {
	// A range starting between occurrences picks up the next one.
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.Granularity = core.Weekly
	tpl.AnchorDate = core.NewDate(2024, 1, 1)

	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 3), core.NewDate(2024, 1, 20), nil)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	want := []core.Date{core.NewDate(2024, 1, 8), core.NewDate(2024, 1, 15)}
	if len(occs) != len(want) {
		t.Fatalf("Expand() returned %d occurrences, want %d", len(occs), len(want))
	}
	for i, occ := range occs {
		if !occ.Date.Equal(want[i].Time) {
			t.Errorf("occurrence %d date = %s, want %s", i, occ.Date.Key(), want[i].Key())
		}
	}
}

func TestExpandAnchorAfterRange(t *testing.T) {
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.AnchorDate = core.NewDate(2025, 1, 1)

	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31), nil)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	if len(occs) != 0 {
		t.Errorf("Expand() with anchor after range = %d occurrences, want 0", len(occs))
	}
}

func TestExpandInvalidInput(t *testing.T) {
	x := NewExpander()
	ctx := context.Background()

	tpl := monthlyTemplate()
	tpl.Granularity = core.None
	if _, err := x.Expand(ctx, tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1), nil); !errors.Is(err, core.ErrInvalidTemplate) {
		t.Errorf("Expand with non-recurring template: error = %v, want ErrInvalidTemplate", err)
	}

	tpl = monthlyTemplate()
	if _, err := x.Expand(ctx, tpl, core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1), nil); !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("Expand with inverted range: error = %v, want ErrInvalidRange", err)
	}
	if _, err := x.Expand(ctx, tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), nil); !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("Expand with empty range: error = %v, want ErrInvalidRange", err)
	}
	if _, err := x.Expand(ctx, tpl, core.NewDate(2024, 1, 1), core.Date{}, nil); !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("Expand with zero end: error = %v, want ErrInvalidRange", err)
	}
}

func TestExpandOverrides(t *testing.T) {
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.Granularity = core.Daily
	tpl.AnchorDate = core.NewDate(2024, 1, 1)
	overrideDay := core.NewDate(2024, 1, 2)
	overrides := Overrides{overrideDay.EpochDays(): core.Money{Cents: 999}}

	// Overrides are ignored while the template is unmodified.
	occs, err := x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 4), overrides)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	for _, occ := range occs {
		if occ.Kind != core.OccurrenceGenerated {
			t.Errorf("unmodified template produced kind %s on %s", occ.Kind, occ.Date.Key())
		}
	}

	tpl.Modified = true
	occs, err = x.Expand(context.Background(), tpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 4), overrides)
	if err != nil {
		t.Fatalf("Expand() unexpected error: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("Expand() returned %d occurrences, want 3", len(occs))
	}
	for _, occ := range occs {
		if occ.Date.Equal(overrideDay.Time) {
			if occ.Kind != core.OccurrenceOverridden || occ.Amount.Cents != 999 {
				t.Errorf("override day: kind=%s amount=%d, want overridden/999", occ.Kind, occ.Amount.Cents)
			}
		} else if occ.Kind != core.OccurrenceGenerated || occ.Amount != tpl.OriginalAmount {
			t.Errorf("%s: kind=%s amount=%d, want generated/original", occ.Date.Key(), occ.Kind, occ.Amount.Cents)
		}
	}
}

func TestExpandCancellation(t *testing.T) {
	x := NewExpander()
	tpl := monthlyTemplate()
	tpl.Granularity = core.Daily
	tpl.AnchorDate = core.NewDate(2000, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := x.Expand(ctx, tpl, core.NewDate(2000, 1, 1), core.NewDate(2030, 1, 1), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expand with cancelled context: error = %v, want context.Canceled", err)
	}
}
