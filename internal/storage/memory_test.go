package storage

import (
	"context"
	"errors"
	"testing"

	"easybudget/internal/core"
)

func seedExpenses(t *testing.T, repo *MemoryRepository, accountID int64, days ...core.Date) {
	t.Helper()
	for i, d := range days {
		_, err := repo.PersistExpense(context.Background(), core.Occurrence{
			AccountID: accountID,
			Title:     "Seed",
			Amount:    core.Money{Cents: int64(100 * (i + 1))},
			Date:      d,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestFetchExpensesBetween(t *testing.T) {
	repo := NewMemoryRepository()
	seedExpenses(t, repo, 1,
		core.NewDate(2024, 1, 1),
		core.NewDate(2024, 1, 15),
		core.NewDate(2024, 2, 1),
	)

	tests := []struct {
		name  string
		start core.Date
		end   core.Date
		want  int
	}{
		{name: "zero start is open", start: core.Date{}, end: core.NewDate(2024, 3, 1), want: 3},
		{name: "half open end", start: core.NewDate(2024, 1, 1), end: core.NewDate(2024, 2, 1), want: 2},
		{name: "inner slice", start: core.NewDate(2024, 1, 10), end: core.NewDate(2024, 1, 20), want: 1},
		{name: "nothing in range", start: core.NewDate(2024, 3, 1), end: core.NewDate(2024, 4, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FetchExpensesBetween(context.Background(), tt.start, tt.end, 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("FetchExpensesBetween = %d rows, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Date.Before(got[i-1].Date.Time) {
					t.Error("rows not in ascending date order")
				}
			}
		})
	}
}

func TestFetchOverridesKeyedByDay(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	day := core.NewDate(2024, 2, 1)

	_, err := repo.PersistExpense(ctx, core.Occurrence{
		AccountID:  1,
		Title:      "Rent",
		Amount:     core.Money{Cents: 90000},
		Date:       day,
		TemplateID: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	seedExpenses(t, repo, 1, core.NewDate(2024, 2, 2)) // no template link

	overrides, err := repo.FetchOverrides(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 1 {
		t.Fatalf("FetchOverrides = %d entries, want 1", len(overrides))
	}
	if got := overrides[day.EpochDays()]; got.Cents != 90000 {
		t.Errorf("override amount = %d, want 90000", got.Cents)
	}
}

func TestExpenseNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.FetchExpense(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FetchExpense error = %v, want ErrNotFound", err)
	}
	if err := repo.UpdateExpense(ctx, core.Occurrence{ID: 42}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateExpense error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteExpense error = %v, want ErrNotFound", err)
	}
	if _, err := repo.FetchTemplate(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FetchTemplate error = %v, want ErrNotFound", err)
	}
}

func TestUpdateExpensePreservesTemplateLink(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	id, err := repo.PersistExpense(ctx, core.Occurrence{
		AccountID:  1,
		Title:      "Rent",
		Amount:     core.Money{Cents: 85000},
		Date:       core.NewDate(2024, 1, 1),
		TemplateID: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.UpdateExpense(ctx, core.Occurrence{
		ID:        id,
		AccountID: 1,
		Title:     "Rent (adjusted)",
		Amount:    core.Money{Cents: 87000},
		Date:      core.NewDate(2024, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FetchExpense(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.TemplateID != 3 {
		t.Errorf("TemplateID after update = %d, want 3", got.TemplateID)
	}
	if got.Amount.Cents != 87000 {
		t.Errorf("Amount after update = %d, want 87000", got.Amount.Cents)
	}
}

func TestUpdatesKeepAccountScope(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	id, err := repo.PersistExpense(ctx, core.Occurrence{
		AccountID: 1,
		Title:     "Coffee",
		Amount:    core.Money{Cents: 300},
		Date:      core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateExpense(ctx, core.Occurrence{
		ID:        id,
		AccountID: 2,
		Title:     "Coffee",
		Amount:    core.Money{Cents: 300},
		Date:      core.NewDate(2024, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.FetchExpense(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountID != 1 {
		t.Errorf("expense AccountID after update = %d, want 1", got.AccountID)
	}

	tplID, err := repo.PersistTemplate(ctx, core.RecurringTemplate{
		AccountID:      1,
		Title:          "Rent",
		OriginalAmount: core.Money{Cents: 85000},
		AnchorDate:     core.NewDate(2024, 1, 1),
		Granularity:    core.Monthly,
	})
	if err != nil {
		t.Fatal(err)
	}
	tpl, err := repo.FetchTemplate(ctx, tplID)
	if err != nil {
		t.Fatal(err)
	}
	tpl.AccountID = 2
	if err := repo.UpdateTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	tpl, err = repo.FetchTemplate(ctx, tplID)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.AccountID != 1 {
		t.Errorf("template AccountID after update = %d, want 1", tpl.AccountID)
	}
}
