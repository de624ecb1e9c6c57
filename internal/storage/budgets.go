package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
)

// CreateBudget inserts a budget with its derived fields reset: remaining
// starts at the full amount, progress at zero.
func (s queries) CreateBudget(ctx context.Context, b *core.Budget) error {
	b.Remaining = b.Amount
	b.Progress = decimal.Zero
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO budgets (user_id, account_id, category, start_date, end_date, amount_cents, remaining_cents, progress_hundredths, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		b.UserID, b.AccountID, string(b.Category), fmtDate(b.StartDate), fmtDate(b.EndDate),
		core.ToCents(b.Amount), core.ToCents(b.Remaining), b.Version, fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget id: %w", err)
	}
	b.ID = id
	return nil
}

func (s queries) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, category, start_date, end_date, amount_cents, remaining_cents, progress_hundredths, version, created_at, updated_at
		FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	return b, nil
}

// UpdateBudgetDerived rewrites the remaining/progress cache, guarded by the
// budget's version token. The caller recomputed both from the attached
// expense set.
func (s queries) UpdateBudgetDerived(ctx context.Context, id int64, remaining, progress decimal.Decimal, version int64, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE budgets SET remaining_cents = ?, progress_hundredths = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		core.ToCents(remaining), core.ToCents(progress), fmtTime(now), id, version)
	if err != nil {
		return fmt.Errorf("update budget derived: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.staleWriteError(ctx, "budgets", id)
	}
	return nil
}

// ListBudgetsForMonth returns the user's budgets starting in now's calendar
// month.
func (s queries) ListBudgetsForMonth(ctx context.Context, userID string, now time.Time) ([]core.Budget, error) {
	month := core.CurrentMonth(now)
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, category, start_date, end_date, amount_cents, remaining_cents, progress_hundredths, version, created_at, updated_at
		FROM budgets WHERE user_id = ? AND start_date >= ? AND start_date <= ? ORDER BY id`,
		userID, fmtDate(month.From), fmtDate(month.To))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBudget(scan func(...any) error) (core.Budget, error) {
	var (
		b                           core.Budget
		amount, remaining, progress int64
		start, end, created, upd    string
		category                    string
	)
	if err := scan(&b.ID, &b.UserID, &b.AccountID, &category, &start, &end, &amount, &remaining, &progress, &b.Version, &created, &upd); err != nil {
		return core.Budget{}, err
	}
	b.Category = core.ExpenseCategory(category)
	b.StartDate = parseDate(start)
	b.EndDate = parseDate(end)
	b.Amount = core.FromCents(amount)
	b.Remaining = core.FromCents(remaining)
	b.Progress = core.FromCents(progress)
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(upd)
	return b, nil
}

// DeleteBudget removes the budget and clears the back-reference of every
// attached expense in the same transaction. Detaching is never destructive:
// the records survive as standalone expenses.
func (r *Repository) DeleteBudget(ctx context.Context, id int64, now time.Time) error {
	return r.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.q.ExecContext(ctx, `
			UPDATE expenses SET budget_id = NULL, version = version + 1, updated_at = ?
			WHERE budget_id = ?`, fmtTime(now), id)
		if err != nil {
			return fmt.Errorf("detach budget expenses: %w", err)
		}
		res, err := tx.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}
