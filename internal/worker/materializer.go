// Package worker runs the recurring-occurrence materializer: a periodic
// loop that turns today's generated occurrences into persisted rows, so
// that history stays stable even when templates are later edited or
// deleted.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"easybudget/internal/core"
	applog "easybudget/internal/log"
	"easybudget/internal/services"
)

// AccountLister enumerates the accounts to materialize for.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
}

// Materializer converts due generated occurrences into persisted rows
// through the store, so every write goes through the normal invalidation
// path. Materialization is idempotent per (template, date): a persisted
// row suppresses its generated twin on the next expansion.
type Materializer struct {
	accounts AccountLister
	store    *services.Store
	interval time.Duration
	logger   *applog.Logger
}

func NewMaterializer(accounts AccountLister, store *services.Store, interval time.Duration, logger *applog.Logger) *Materializer {
	return &Materializer{
		accounts: accounts,
		store:    store,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentMaterializer),
	}
}

// Run processes once immediately, then on every tick until the context is
// cancelled.
func (m *Materializer) Run(ctx context.Context) error {
	if _, err := m.RunOnce(ctx, core.Today()); err != nil {
		m.logger.ErrorContext(ctx, "Materialization pass failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "Materializer stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.RunOnce(ctx, core.Today()); err != nil {
				m.logger.ErrorContext(ctx, "Materialization pass failed", "error", err)
			}
		}
	}
}

// RunOnce materializes the given day across all accounts, fanning out one
// goroutine per account. It returns the number of rows persisted.
func (m *Materializer) RunOnce(ctx context.Context, day core.Date) (int, error) {
	accounts, err := m.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	counts := make([]int, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		g.Go(func() error {
			n, err := m.materializeAccount(gctx, account.ID, day)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	m.logger.InfoContext(ctx, "Materialization pass complete",
		"day", day.Key(), "accounts", len(accounts), "persisted", total)
	return total, nil
}

func (m *Materializer) materializeAccount(ctx context.Context, accountID int64, day core.Date) (int, error) {
	occs, err := m.store.GetExpensesForDate(ctx, day, accountID)
	if err != nil {
		return 0, fmt.Errorf("account %d: %w", accountID, err)
	}

	count := 0
	for _, o := range occs {
		if o.Kind == core.OccurrencePersisted {
			continue
		}
		row := o
		row.Kind = core.OccurrencePersisted
		id, err := m.store.RecordExpense(ctx, row)
		if err != nil {
			return count, fmt.Errorf("materialize template %d on %s: %w", o.TemplateID, day.Key(), err)
		}
		m.logger.DebugContext(ctx, "Materialized recurring occurrence",
			"expense_id", id, "template_id", o.TemplateID,
			"account_id", accountID, "day", day.Key(), "amount_cents", o.Amount.Cents)
		count++
	}
	return count, nil
}
