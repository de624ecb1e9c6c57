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

func (s queries) CreateIncome(ctx context.Context, in *core.Income) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO incomes (user_id, account_id, category, label, note, amount_cents, date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.AccountID, string(in.Category), in.Label, in.Note,
		core.ToCents(in.Amount), fmtDate(in.Date), in.Version, fmtTime(in.CreatedAt), fmtTime(in.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("income id: %w", err)
	}
	in.ID = id
	return nil
}

func (s queries) GetIncome(ctx context.Context, id int64) (core.Income, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, category, label, note, amount_cents, date, version, created_at, updated_at
		FROM incomes WHERE id = ?`, id)

	var (
		in                 core.Income
		cents              int64
		date, created, upd string
		category           string
	)
	err := row.Scan(&in.ID, &in.UserID, &in.AccountID, &category, &in.Label, &in.Note, &cents, &date, &in.Version, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("scan income: %w", err)
	}
	in.Category = core.IncomeCategory(category)
	in.Amount = core.FromCents(cents)
	in.Date = parseDate(date)
	in.CreatedAt = parseTime(created)
	in.UpdatedAt = parseTime(upd)
	return in, nil
}

func (s queries) DeleteIncome(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s queries) ListIncomes(ctx context.Context, accountID int64, p core.Period) ([]core.Income, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, category, label, note, amount_cents, date, version, created_at, updated_at
		FROM incomes WHERE account_id = ? AND date >= ? AND date <= ? ORDER BY date, id`,
		accountID, fmtDate(p.From), fmtDate(p.To))
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in                 core.Income
			cents              int64
			date, created, upd string
			category           string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.AccountID, &category, &in.Label, &in.Note, &cents, &date, &in.Version, &created, &upd); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		in.Category = core.IncomeCategory(category)
		in.Amount = core.FromCents(cents)
		in.Date = parseDate(date)
		in.CreatedAt = parseTime(created)
		in.UpdatedAt = parseTime(upd)
		out = append(out, in)
	}
	return out, rows.Err()
}

// SumIncome totals the account's income records inside the period. Exact
// integer-cents arithmetic in SQL, converted to a decimal at the boundary.
func (s queries) SumIncome(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	return s.sumRecords(ctx, "incomes", accountID, p)
}

// SumExpense totals the account's expense records inside the period.
func (s queries) SumExpense(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	return s.sumRecords(ctx, "expenses", accountID, p)
}

func (s queries) sumRecords(ctx context.Context, table string, accountID int64, p core.Period) (decimal.Decimal, error) {
	var cents int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM `+table+` WHERE account_id = ? AND date >= ? AND date <= ?`,
		accountID, fmtDate(p.From), fmtDate(p.To)).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", table, err)
	}
	return core.FromCents(cents), nil
}

func (s queries) CreateExpense(ctx context.Context, e *core.Expense) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO expenses (user_id, account_id, category, label, note, amount_cents, date, budget_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.AccountID, string(e.Category), e.Label, e.Note,
		core.ToCents(e.Amount), fmtDate(e.Date), nullableID(e.BudgetID), e.Version, fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	e.ID = id
	return nil
}

func (s queries) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, account_id, category, label, note, amount_cents, date, budget_id, version, created_at, updated_at
		FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	return e, nil
}

func (s queries) DeleteExpense(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s queries) ListExpenses(ctx context.Context, accountID int64, p core.Period) ([]core.Expense, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, category, label, note, amount_cents, date, budget_id, version, created_at, updated_at
		FROM expenses WHERE account_id = ? AND date >= ? AND date <= ? ORDER BY date, id`,
		accountID, fmtDate(p.From), fmtDate(p.To))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

// ListBudgetExpenses returns the expenses currently attached to a budget,
// the input of every derived-field recompute.
func (s queries) ListBudgetExpenses(ctx context.Context, budgetID int64) ([]core.Expense, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, category, label, note, amount_cents, date, budget_id, version, created_at, updated_at
		FROM expenses WHERE budget_id = ? ORDER BY id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget expenses: %w", err)
	}
	return collectExpenses(rows)
}

// SetExpenseBudget rewrites the expense's budget back-reference (zero clears
// it), guarded by the expense's version.
func (s queries) SetExpenseBudget(ctx context.Context, id, budgetID, version int64, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE expenses SET budget_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		nullableID(budgetID), fmtTime(now), id, version)
	if err != nil {
		return fmt.Errorf("set expense budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.staleWriteError(ctx, "expenses", id)
	}
	return nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExpense(scan func(...any) error) (core.Expense, error) {
	var (
		e                  core.Expense
		cents              int64
		date, created, upd string
		category           string
		budgetID           sql.NullInt64
	)
	if err := scan(&e.ID, &e.UserID, &e.AccountID, &category, &e.Label, &e.Note, &cents, &date, &budgetID, &e.Version, &created, &upd); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.ExpenseCategory(category)
	e.Amount = core.FromCents(cents)
	e.Date = parseDate(date)
	if budgetID.Valid {
		e.BudgetID = budgetID.Int64
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(upd)
	return e, nil
}

func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
