// Package storage implements the persistence collaborator over an embedded
// SQLite database. Dates are stored as YYYY-MM-DD text, money as integer
// cents. Write operations retry briefly on a busy database; the retry
// policy lives here, never in the store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"easybudget/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// retryWrite retries a write briefly when SQLite reports the database
// locked by another connection (the materializer and the API server share
// one file).
func retryWrite(op func() error) error {
	return retry.Do(
		op,
		retry.RetryIf(func(err error) bool {
			msg := err.Error()
			return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
		}),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (r *SQLiteRepository) FetchAccount(ctx context.Context, id int64) (core.Account, error) {
	var (
		a     core.Account
		cents int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, initial_balance_cents FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Currency, &cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("fetch account: %w", err)
	}
	a.InitialBalance = core.Money{Cents: cents}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, currency, initial_balance_cents FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a     core.Account
			cents int64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency, &cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.InitialBalance = core.Money{Cents: cents}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	var id int64
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO accounts (name, currency, initial_balance_cents) VALUES (?, ?, ?)`,
			a.Name, a.Currency, a.InitialBalance.Cents)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "id", id, "name", a.Name)
	return id, nil
}

func (r *SQLiteRepository) FetchExpenses(ctx context.Context, date core.Date, accountID int64) ([]core.Occurrence, error) {
	return r.queryExpenses(ctx,
		`SELECT id, account_id, title, amount_cents, expense_date, category, template_id
		 FROM expenses WHERE account_id = ? AND expense_date = ? ORDER BY id`,
		accountID, date.Key())
}

func (r *SQLiteRepository) FetchExpensesBetween(ctx context.Context, start, end core.Date, accountID int64) ([]core.Occurrence, error) {
	if start.IsZero() {
		return r.queryExpenses(ctx,
			`SELECT id, account_id, title, amount_cents, expense_date, category, template_id
			 FROM expenses WHERE account_id = ? AND expense_date < ? ORDER BY expense_date, id`,
			accountID, end.Key())
	}
	return r.queryExpenses(ctx,
		`SELECT id, account_id, title, amount_cents, expense_date, category, template_id
		 FROM expenses WHERE account_id = ? AND expense_date >= ? AND expense_date < ?
		 ORDER BY expense_date, id`,
		accountID, start.Key(), end.Key())
}

func (r *SQLiteRepository) FetchExpense(ctx context.Context, id int64) (core.Occurrence, error) {
	occs, err := r.queryExpenses(ctx,
		`SELECT id, account_id, title, amount_cents, expense_date, category, template_id
		 FROM expenses WHERE id = ?`, id)
	if err != nil {
		return core.Occurrence{}, err
	}
	if len(occs) == 0 {
		return core.Occurrence{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return occs[0], nil
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Occurrence
	for rows.Next() {
		var (
			o          core.Occurrence
			cents      int64
			dateStr    string
			templateID sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Title, &cents, &dateStr, &o.Category, &templateID); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		o.Amount = core.Money{Cents: cents}
		o.Date, err = core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse expense date %q: %w", dateStr, err)
		}
		o.Kind = core.OccurrencePersisted
		if templateID.Valid {
			o.TemplateID = templateID.Int64
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FetchActiveTemplates(ctx context.Context, accountID int64) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, title, amount_cents, anchor_date, granularity, modified
		 FROM recurring_templates WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetch active templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FetchTemplate(ctx context.Context, id int64) (core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, title, amount_cents, anchor_date, granularity, modified
		 FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("fetch template: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("fetch template: %w", err)
		}
		return core.RecurringTemplate{}, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	return scanTemplate(rows)
}

func scanTemplate(rows *sql.Rows) (core.RecurringTemplate, error) {
	var (
		t        core.RecurringTemplate
		cents    int64
		dateStr  string
		gran     string
		modified int64
	)
	if err := rows.Scan(&t.ID, &t.AccountID, &t.Title, &cents, &dateStr, &gran, &modified); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("scan template: %w", err)
	}
	t.OriginalAmount = core.Money{Cents: cents}
	anchor, err := core.ParseDate(dateStr)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("parse anchor date %q: %w", dateStr, err)
	}
	t.AnchorDate = anchor
	t.Granularity = core.Granularity(gran)
	t.Modified = modified != 0
	return t, nil
}

func (r *SQLiteRepository) FetchOverrides(ctx context.Context, templateID int64) (map[int64]core.Money, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_date, amount_cents FROM expenses WHERE template_id = ?`, templateID)
	if err != nil {
		return nil, fmt.Errorf("fetch overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[int64]core.Money)
	for rows.Next() {
		var (
			dateStr string
			cents   int64
		)
		if err := rows.Scan(&dateStr, &cents); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		d, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse override date %q: %w", dateStr, err)
		}
		overrides[d.EpochDays()] = core.Money{Cents: cents}
	}
	return overrides, rows.Err()
}

func (r *SQLiteRepository) PersistExpense(ctx context.Context, o core.Occurrence) (int64, error) {
	var templateID any
	if o.TemplateID != 0 {
		templateID = o.TemplateID
	}
	var id int64
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO expenses (account_id, title, amount_cents, expense_date, category, template_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.AccountID, o.Title, o.Amount.Cents, o.Date.Key(), o.Category, templateID)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("persist expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense persisted",
		"id", id, "account_id", o.AccountID, "day", o.Date.Key(), "amount_cents", o.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, o core.Occurrence) error {
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE expenses SET title = ?, amount_cents = ?, expense_date = ?, category = ? WHERE id = ?`,
			o.Title, o.Amount.Cents, o.Date.Key(), o.Category, o.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("expense %d: %w", o.ID, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PersistTemplate(ctx context.Context, t core.RecurringTemplate) (int64, error) {
	var id int64
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO recurring_templates (account_id, title, amount_cents, anchor_date, granularity, modified)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.AccountID, t.Title, t.OriginalAmount.Cents, t.AnchorDate.Key(), string(t.Granularity), boolToInt(t.Modified))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("persist template: %w", err)
	}
	slog.DebugContext(ctx, "Recurring template persisted",
		"id", id, "account_id", t.AccountID, "anchor", t.AnchorDate.Key(), "granularity", string(t.Granularity))
	return id, nil
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE recurring_templates SET title = ?, amount_cents = ?, anchor_date = ?, granularity = ?, modified = ? WHERE id = ?`,
			t.Title, t.OriginalAmount.Cents, t.AnchorDate.Key(), string(t.Granularity), boolToInt(t.Modified), t.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("template %d: %w", t.ID, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// DeleteTemplate removes the template row only. Materialized expense rows
// keep their template_id as an orphaned back-reference.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id int64) error {
	err := retryWrite(func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("template %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
