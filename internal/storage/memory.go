package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"easybudget/internal/core"
)

// MemoryRepository is an in-memory persistence collaborator with the same
// contract as the SQLite repository. It backs the memory data backend for
// local runs and keeps tests free of filesystem state.
type MemoryRepository struct {
	mu        sync.RWMutex
	nextID    int64
	accounts  map[int64]core.Account
	expenses  map[int64]core.Occurrence
	templates map[int64]core.RecurringTemplate
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:    1,
		accounts:  make(map[int64]core.Account),
		expenses:  make(map[int64]core.Occurrence),
		templates: make(map[int64]core.RecurringTemplate),
	}
}

// Close exists so memory and sqlite backends share a contract.
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) id() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func (r *MemoryRepository) FetchAccount(_ context.Context, id int64) (core.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (r *MemoryRepository) ListAccounts(_ context.Context) ([]core.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepository) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.id()
	r.accounts[a.ID] = a
	return a.ID, nil
}

func (r *MemoryRepository) FetchExpenses(_ context.Context, date core.Date, accountID int64) ([]core.Occurrence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Occurrence
	for _, o := range r.expenses {
		if o.AccountID == accountID && o.Date.EpochDays() == date.EpochDays() {
			out = append(out, o)
		}
	}
	sortByDateThenID(out)
	return out, nil
}

func (r *MemoryRepository) FetchExpensesBetween(_ context.Context, start, end core.Date, accountID int64) ([]core.Occurrence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Occurrence
	for _, o := range r.expenses {
		if o.AccountID != accountID || !o.Date.Before(end.Time) {
			continue
		}
		if !start.IsZero() && o.Date.Before(start.Time) {
			continue
		}
		out = append(out, o)
	}
	sortByDateThenID(out)
	return out, nil
}

func (r *MemoryRepository) FetchExpense(_ context.Context, id int64) (core.Occurrence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.expenses[id]
	if !ok {
		return core.Occurrence{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return o, nil
}

func (r *MemoryRepository) FetchActiveTemplates(_ context.Context, accountID int64) ([]core.RecurringTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.RecurringTemplate
	for _, t := range r.templates {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FetchTemplate(_ context.Context, id int64) (core.RecurringTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return core.RecurringTemplate{}, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (r *MemoryRepository) FetchOverrides(_ context.Context, templateID int64) (map[int64]core.Money, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overrides := make(map[int64]core.Money)
	for _, o := range r.expenses {
		if o.TemplateID == templateID {
			overrides[o.Date.EpochDays()] = o.Amount
		}
	}
	return overrides, nil
}

func (r *MemoryRepository) PersistExpense(_ context.Context, o core.Occurrence) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.ID = r.id()
	o.Kind = core.OccurrencePersisted
	r.expenses[o.ID] = o
	return o.ID, nil
}

func (r *MemoryRepository) UpdateExpense(_ context.Context, o core.Occurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.expenses[o.ID]
	if !ok {
		return fmt.Errorf("expense %d: %w", o.ID, core.ErrNotFound)
	}
	// Account and template linkage are fixed at creation, matching the
	// sqlite backend's update statement.
	o.Kind = core.OccurrencePersisted
	o.AccountID = prev.AccountID
	o.TemplateID = prev.TemplateID
	r.expenses[o.ID] = o
	return nil
}

func (r *MemoryRepository) DeleteExpense(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.expenses[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	delete(r.expenses, id)
	return nil
}

func (r *MemoryRepository) PersistTemplate(_ context.Context, t core.RecurringTemplate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.id()
	r.templates[t.ID] = t
	return t.ID, nil
}

func (r *MemoryRepository) UpdateTemplate(_ context.Context, t core.RecurringTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.templates[t.ID]
	if !ok {
		return fmt.Errorf("template %d: %w", t.ID, core.ErrNotFound)
	}
	t.AccountID = prev.AccountID
	r.templates[t.ID] = t
	return nil
}

func (r *MemoryRepository) DeleteTemplate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	delete(r.templates, id)
	return nil
}

func sortByDateThenID(occs []core.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].Date.EpochDays() != occs[j].Date.EpochDays() {
			return occs[i].Date.EpochDays() < occs[j].Date.EpochDays()
		}
		return occs[i].ID < occs[j].ID
	})
}
