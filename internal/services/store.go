package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"easybudget/internal/cache"
	"easybudget/internal/core"
)

// Repository is the persistence collaborator. Monetary values cross this
// boundary as integer cents, dates as calendar dates without time-of-day.
// Implementations own their retry policy; the store never retries.
type Repository interface {
	FetchAccount(ctx context.Context, id int64) (core.Account, error)
	FetchExpenses(ctx context.Context, date core.Date, accountID int64) ([]core.Occurrence, error)
	// FetchExpensesBetween returns persisted expenses with start <= date < end.
	// A zero start means "from the beginning of history".
	FetchExpensesBetween(ctx context.Context, start, end core.Date, accountID int64) ([]core.Occurrence, error)
	FetchExpense(ctx context.Context, id int64) (core.Occurrence, error)
	FetchActiveTemplates(ctx context.Context, accountID int64) ([]core.RecurringTemplate, error)
	FetchTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error)
	// FetchOverrides returns the amounts of the already-materialized
	// occurrences of a template, keyed by epoch day.
	FetchOverrides(ctx context.Context, templateID int64) (map[int64]core.Money, error)
	PersistExpense(ctx context.Context, o core.Occurrence) (int64, error)
	UpdateExpense(ctx context.Context, o core.Occurrence) error
	DeleteExpense(ctx context.Context, id int64) error
	PersistTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error)
	UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error
	DeleteTemplate(ctx context.Context, id int64) error
}

// EventPublisher notifies the external backup collaborator of committed
// mutations. Publishing is best-effort: a lost event never fails a write.
type EventPublisher interface {
	PublishMutation(ctx context.Context, kind string, id int64, date core.Date) error
}

// Store is the cached expense store the UI layer talks to. It owns one
// cache pair (expense lists, balances) per account, as explicit instances
// with no package-level state, and keeps them exactly consistent with the
// repository: every committed mutation drops all entries it could affect
// before the write is reported done.
type Store struct {
	repo     Repository
	events   EventPublisher // may be nil
	expander *Expander
	agg      *Aggregator

	mu       sync.Mutex
	accounts map[int64]*accountCache
	flight   singleflight.Group
}

// accountCache is the per-account cache scope. The write mutex serializes
// mutations; reads go straight to the caches and use the generation counter
// to avoid storing a value computed before a racing invalidation.
type accountCache struct {
	mu       sync.Mutex
	lists    *cache.DateCache[[]core.Occurrence]
	balances *cache.DateCache[core.Money]
	gen      atomic.Int64
}

// NewStore creates a cached expense store over the given repository.
// events may be nil when no backup collaborator is configured.
func NewStore(repo Repository, events EventPublisher) *Store {
	return &Store{
		repo:     repo,
		events:   events,
		expander: NewExpander(),
		agg:      NewAggregator(),
		accounts: make(map[int64]*accountCache),
	}
}

func (s *Store) account(id int64) *accountCache {
	s.mu.Lock()
	defer s.mu.Unlock()

	ac, ok := s.accounts[id]
	if !ok {
		ac = &accountCache{
			lists:    cache.NewDateCache[[]core.Occurrence](),
			balances: cache.NewDateCache[core.Money](),
		}
		s.accounts[id] = ac
	}
	return ac
}

// GetExpensesForDate returns every occurrence on the given day: persisted
// rows plus synthetic occurrences generated from the active recurring
// templates. Persisted rows win over generated ones for the same
// (template, date) since a materialized row carries any individual edits.
func (s *Store) GetExpensesForDate(ctx context.Context, date core.Date, accountID int64) ([]core.Occurrence, error) {
	ac := s.account(accountID)
	if v, ok := ac.lists.Get(date); ok {
		return v, nil
	}

	key := fmt.Sprintf("list:%d:%s", accountID, date.Key())
	v, err, _ := s.flight.Do(key, func() (any, error) {
		gen := ac.gen.Load()
		list, err := s.computeExpensesForDate(ctx, date, accountID)
		if err != nil {
			return nil, err
		}
		// Memoize only if no mutation invalidated this scope while we were
		// computing. The re-check and Put happen under the write lock:
		// writers hold it across persist, sweep, and generation bump, so a
		// value computed before an invalidation can never land after it.
		ac.mu.Lock()
		if ac.gen.Load() == gen {
			ac.lists.Put(date, list)
		}
		ac.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Occurrence), nil
}

func (s *Store) computeExpensesForDate(ctx context.Context, date core.Date, accountID int64) ([]core.Occurrence, error) {
	persisted, err := s.repo.FetchExpenses(ctx, date, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetch expenses for %s: %w", date.Key(), err)
	}
	generated, err := s.generateForRange(ctx, accountID, date, date.AddDays(1), persisted)
	if err != nil {
		return nil, err
	}

	list := make([]core.Occurrence, 0, len(persisted)+len(generated))
	list = append(list, persisted...)
	list = append(list, generated...)
	return list, nil
}

// generateForRange expands every active recurring template of the account
// over [start, end), suppressing occurrences already materialized as
// persisted rows.
func (s *Store) generateForRange(ctx context.Context, accountID int64, start, end core.Date, persisted []core.Occurrence) ([]core.Occurrence, error) {
	templates, err := s.repo.FetchActiveTemplates(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetch active templates: %w", err)
	}

	materialized := make(map[int64]map[int64]bool)
	for _, o := range persisted {
		if o.TemplateID == 0 {
			continue
		}
		if materialized[o.TemplateID] == nil {
			materialized[o.TemplateID] = make(map[int64]bool)
		}
		materialized[o.TemplateID][o.Date.EpochDays()] = true
	}

	var out []core.Occurrence
	for _, tpl := range templates {
		var overrides Overrides
		if tpl.Modified {
			overrides, err = s.repo.FetchOverrides(ctx, tpl.ID)
			if err != nil {
				return nil, fmt.Errorf("fetch overrides for template %d: %w", tpl.ID, err)
			}
		}
		occs, err := s.expander.Expand(ctx, tpl, start, end, overrides)
		if err != nil {
			return nil, err
		}
		for _, occ := range occs {
			if materialized[tpl.ID][occ.Date.EpochDays()] {
				continue
			}
			out = append(out, occ)
		}
	}
	return out, nil
}

// GetBalance returns the running balance of the account as of end of day:
// the account's initial balance, reduced by every expense and increased by
// every revenue dated at or before the given date. On a cache miss the
// balance is recomputed incrementally
// from the nearest earlier cached balance when one exists, aggregating
// deltas only over the gap.
func (s *Store) GetBalance(ctx context.Context, date core.Date, accountID int64) (core.Money, error) {
	ac := s.account(accountID)
	if v, ok := ac.balances.Get(date); ok {
		return v, nil
	}

	key := fmt.Sprintf("balance:%d:%s", accountID, date.Key())
	v, err, _ := s.flight.Do(key, func() (any, error) {
		gen := ac.gen.Load()

		base := core.Money{}
		var start core.Date // zero: from the beginning of history
		if anchor, cached, ok := ac.balances.Floor(date); ok {
			if anchor.EpochDays() == date.EpochDays() {
				return cached, nil
			}
			base = cached
			start = anchor.AddDays(1)
		} else {
			account, err := s.repo.FetchAccount(ctx, accountID)
			if err != nil {
				return core.Money{}, fmt.Errorf("fetch account %d: %w", accountID, err)
			}
			base = account.InitialBalance
		}

		deltas, err := s.deltasBetween(ctx, accountID, start, date.AddDays(1))
		if err != nil {
			return core.Money{}, err
		}
		total := s.agg.RunningBalance(base, deltas)

		ac.mu.Lock()
		if ac.gen.Load() == gen {
			ac.balances.Put(date, total)
		}
		ac.mu.Unlock()
		return total, nil
	})
	if err != nil {
		return core.Money{}, err
	}
	return v.(core.Money), nil
}

// deltasBetween collects every balance delta with start <= date < end:
// persisted rows plus generated occurrences, sorted by date ascending.
// Amounts are negated here, so that a positive (expense) amount reduces
// the folded balance and a negative (revenue) amount increases it.
func (s *Store) deltasBetween(ctx context.Context, accountID int64, start, end core.Date) ([]Delta, error) {
	if !start.Before(end.Time) {
		return nil, nil
	}
	persisted, err := s.repo.FetchExpensesBetween(ctx, start, end, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetch expenses between %s and %s: %w", start.Key(), end.Key(), err)
	}
	generated, err := s.generateForRange(ctx, accountID, start, end, persisted)
	if err != nil {
		return nil, err
	}

	deltas := make([]Delta, 0, len(persisted)+len(generated))
	for _, o := range persisted {
		deltas = append(deltas, Delta{Date: o.Date, Amount: o.Amount.Neg()})
	}
	for _, o := range generated {
		deltas = append(deltas, Delta{Date: o.Date, Amount: o.Amount.Neg()})
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].Date.Before(deltas[j].Date.Time)
	})
	return deltas, nil
}

// RecordExpense persists a new occurrence and invalidates every cache
// entry its date can affect. The id of the persisted row is returned.
func (s *Store) RecordExpense(ctx context.Context, o core.Occurrence) (int64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	ac := s.account(o.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	id, err := s.repo.PersistExpense(ctx, o)
	if err != nil {
		// The write did not commit: the cache stays untouched.
		return 0, fmt.Errorf("persist expense: %w", err)
	}
	s.invalidate(ac, o.Date, false)
	s.publish(ctx, "expense.recorded", id, o.Date)
	return id, nil
}

// UpdateExpense rewrites a persisted occurrence. Both the old and the new
// date are invalidated: moving an expense shifts balances from whichever
// day comes first.
func (s *Store) UpdateExpense(ctx context.Context, o core.Occurrence) error {
	if err := o.Validate(); err != nil {
		return err
	}
	ac := s.account(o.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	prev, err := s.repo.FetchExpense(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("fetch expense %d: %w", o.ID, err)
	}
	// Moving an expense between accounts would need invalidation in both
	// scopes; it is rejected instead.
	if prev.AccountID != o.AccountID {
		return fmt.Errorf("expense %d: account cannot change: %w", o.ID, core.ErrInvalidInput)
	}
	if err := s.repo.UpdateExpense(ctx, o); err != nil {
		return fmt.Errorf("update expense %d: %w", o.ID, err)
	}

	earliest := prev.Date
	if o.Date.Before(earliest.Time) {
		earliest = o.Date
	}
	ac.balances.InvalidateFrom(earliest)
	ac.lists.InvalidateExact(prev.Date)
	ac.lists.InvalidateExact(o.Date)
	ac.gen.Add(1)
	s.publish(ctx, "expense.updated", o.ID, o.Date)
	return nil
}

// DeleteExpense removes a persisted occurrence.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	prev, err := s.repo.FetchExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch expense %d: %w", id, err)
	}
	ac := s.account(prev.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.invalidate(ac, prev.Date, false)
	s.publish(ctx, "expense.deleted", id, prev.Date)
	return nil
}

// RecordRecurringTemplate persists a new recurring template. Every date
// from the anchor onward can now carry a generated occurrence, so the
// affected set is unbounded and both caches are swept with the open-ended
// from-date predicate.
func (s *Store) RecordRecurringTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	ac := s.account(t.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	id, err := s.repo.PersistTemplate(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("persist template: %w", err)
	}
	s.invalidate(ac, t.AnchorDate, true)
	s.publish(ctx, "template.recorded", id, t.AnchorDate)
	return id, nil
}

// UpdateRecurringTemplate rewrites a template, invalidating from the
// earlier of the old and new anchor dates.
func (s *Store) UpdateRecurringTemplate(ctx context.Context, t core.RecurringTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	ac := s.account(t.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	prev, err := s.repo.FetchTemplate(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("fetch template %d: %w", t.ID, err)
	}
	if prev.AccountID != t.AccountID {
		return fmt.Errorf("template %d: account cannot change: %w", t.ID, core.ErrInvalidInput)
	}
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return fmt.Errorf("update template %d: %w", t.ID, err)
	}

	earliest := prev.AnchorDate
	if t.AnchorDate.Before(earliest.Time) {
		earliest = t.AnchorDate
	}
	s.invalidate(ac, earliest, true)
	s.publish(ctx, "template.updated", t.ID, t.AnchorDate)
	return nil
}

// DeleteRecurringTemplate removes a template and with it every
// not-yet-materialized future occurrence. Historical materialized rows stay
// behind with an orphaned back-reference.
func (s *Store) DeleteRecurringTemplate(ctx context.Context, id int64) error {
	prev, err := s.repo.FetchTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch template %d: %w", id, err)
	}
	ac := s.account(prev.AccountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	s.invalidate(ac, prev.AnchorDate, true)
	s.publish(ctx, "template.deleted", id, prev.AnchorDate)
	return nil
}

// invalidate drops every entry the mutation can affect. Balances are
// monotonically dependent on all earlier dates, so they are always swept
// from the affected date onward; expense lists only change on the affected
// day itself unless the mutation touches a template (sweep is true), in
// which case the affected list dates are unbounded too.
func (s *Store) invalidate(ac *accountCache, from core.Date, sweep bool) {
	ac.balances.InvalidateFrom(from)
	if sweep {
		ac.lists.InvalidateFrom(from)
	} else {
		ac.lists.InvalidateExact(from)
	}
	ac.gen.Add(1)
}

func (s *Store) publish(ctx context.Context, kind string, id int64, date core.Date) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMutation(ctx, kind, id, date); err != nil {
		slog.WarnContext(ctx, "Failed to publish mutation event",
			"kind", kind, "id", id, "day", date.Key(), "error", err)
	}
}
