package services

import (
	"errors"
	"testing"

	"easybudget/internal/core"
)

func TestRunningBalance(t *testing.T) {
	agg := NewAggregator()
	base := core.Money{Cents: 100000}
	deltas := []Delta{
		{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 2500}},
		{Date: core.NewDate(2024, 1, 2), Amount: core.Money{Cents: -10000}},
		{Date: core.NewDate(2024, 1, 3), Amount: core.Money{Cents: 500}},
	}

	// A plain left fold: sign handling belongs to whoever builds the deltas.
	got := agg.RunningBalance(base, deltas)
	if want := int64(93000); got.Cents != want {
		t.Errorf("RunningBalance = %d, want %d", got.Cents, want)
	}

	if got := agg.RunningBalance(base, nil); got != base {
		t.Errorf("RunningBalance with no deltas = %d, want base %d", got.Cents, base.Cents)
	}
}

func TestRangeDelta(t *testing.T) {
	agg := NewAggregator()
	deltas := []Delta{
		{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 100}},
		{Date: core.NewDate(2024, 1, 5), Amount: core.Money{Cents: 200}},
		{Date: core.NewDate(2024, 1, 10), Amount: core.Money{Cents: 400}},
	}

	tests := []struct {
		name string
		from core.Date
		to   core.Date
		want int64
	}{
		{name: "covers all", from: core.NewDate(2024, 1, 1), to: core.NewDate(2024, 1, 11), want: 700},
		{name: "half open end", from: core.NewDate(2024, 1, 1), to: core.NewDate(2024, 1, 10), want: 300},
		{name: "inner slice", from: core.NewDate(2024, 1, 2), to: core.NewDate(2024, 1, 6), want: 200},
		{name: "empty range", from: core.NewDate(2024, 1, 5), to: core.NewDate(2024, 1, 5), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agg.RangeDelta(deltas, tt.from, tt.to)
			if err != nil {
				t.Fatalf("RangeDelta unexpected error: %v", err)
			}
			if got.Cents != tt.want {
				t.Errorf("RangeDelta = %d, want %d", got.Cents, tt.want)
			}
		})
	}
}

func TestRangeDeltaInverted(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.RangeDelta(nil, core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("RangeDelta with inverted range: error = %v, want ErrInvalidRange", err)
	}
}

func TestRangeSplitEqualsWhole(t *testing.T) {
	// Splitting a range at any midpoint must sum to the whole: the property
	// the incremental balance recomputation relies on.
	agg := NewAggregator()
	deltas := []Delta{
		{Date: core.NewDate(2024, 1, 1), Amount: core.Money{Cents: 150}},
		{Date: core.NewDate(2024, 1, 3), Amount: core.Money{Cents: -75}},
		{Date: core.NewDate(2024, 1, 7), Amount: core.Money{Cents: 300}},
		{Date: core.NewDate(2024, 1, 15), Amount: core.Money{Cents: -20}},
	}
	from := core.NewDate(2024, 1, 1)
	to := core.NewDate(2024, 1, 16)

	whole, err := agg.RangeDelta(deltas, from, to)
	if err != nil {
		t.Fatal(err)
	}

	for mid := from; mid.Before(to.Time); mid = mid.AddDays(1) {
		left, err := agg.RangeDelta(deltas, from, mid)
		if err != nil {
			t.Fatal(err)
		}
		right, err := agg.RangeDelta(deltas, mid, to)
		if err != nil {
			t.Fatal(err)
		}
		if got := left.Add(right); got != whole {
			t.Errorf("split at %s: %d + %d = %d, want %d",
				mid.Key(), left.Cents, right.Cents, got.Cents, whole.Cents)
		}
	}
}
