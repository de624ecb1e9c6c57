// Package services holds the business logic of the three binaries: budget
// allocation, cross-service balance aggregation and goal notification.
package services

import (
	"context"
	"fmt"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/log"
	"finanzen/internal/storage"
)

// BudgetAllocator maintains a budget's derived remaining/progress fields as
// expense membership changes. Every operation is one local transaction: any
// failure leaves both the budget and the expense exactly as they were.
// Writers on the same budget serialize through the row version check; the
// recommended caller reaction to ErrConflict is re-fetch and retry.
type BudgetAllocator struct {
	repo   *storage.Repository
	logger *log.Logger
}

func NewBudgetAllocator(repo *storage.Repository, logger *log.Logger) *BudgetAllocator {
	return &BudgetAllocator{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentAllocator),
	}
}

// AttachExpense adds an expense to the budget and recomputes the derived
// fields. A zero expense ID persists a new record; an existing ID moves the
// record, detaching it from any prior budget first and recomputing that
// budget too. Validation happens before any mutation.
func (a *BudgetAllocator) AttachExpense(ctx context.Context, budgetID int64, expense core.Expense) (core.Budget, error) {
	if expense.Amount.Sign() <= 0 {
		return core.Budget{}, fmt.Errorf("attach expense: %w", core.ErrInvalidAmount)
	}
	now := time.Now().UTC()
	if expense.ID == 0 {
		if expense.Version == 0 {
			expense.Meta = core.NewMeta(expense.UserID, expense.AccountID, now)
		}
		if err := expense.Validate(); err != nil {
			return core.Budget{}, fmt.Errorf("attach expense: %w", err)
		}
	}

	var updated core.Budget
	err := a.repo.WithTx(ctx, func(tx *storage.Tx) error {
		target, err := tx.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}

		if expense.ID == 0 {
			expense.BudgetID = budgetID
			if err := tx.CreateExpense(ctx, &expense); err != nil {
				return err
			}
		} else {
			current, err := tx.GetExpense(ctx, expense.ID)
			if err != nil {
				return err
			}
			if current.BudgetID != budgetID {
				if err := tx.SetExpenseBudget(ctx, current.ID, budgetID, current.Version, now); err != nil {
					return err
				}
				// The record moved away from its old budget; that
				// budget's cache must reflect the departure.
				if current.Attached() {
					if err := recomputeBudget(ctx, tx, current.BudgetID, now); err != nil {
						return err
					}
				}
			}
			expense = current
		}

		expenses, err := tx.ListBudgetExpenses(ctx, budgetID)
		if err != nil {
			return err
		}
		target.Recompute(expenses)
		if err := tx.UpdateBudgetDerived(ctx, target.ID, target.Remaining, target.Progress, target.Version, now); err != nil {
			return err
		}
		target.Version++
		target.Touch(now)
		updated = target
		return nil
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("attach expense: %w", err)
	}

	a.logger.InfoContext(ctx, "Expense attached to budget",
		log.FieldOperation, log.OpAttach,
		log.FieldBudgetID, updated.ID,
		log.FieldExpenseID, expense.ID,
		log.FieldAmount, expense.Amount.String())
	return updated, nil
}

// DetachExpense removes the expense from its budget and recomputes the
// derived fields. An expense without a budget reference is ErrNotFound and
// nothing changes.
func (a *BudgetAllocator) DetachExpense(ctx context.Context, expenseID int64) (core.Budget, error) {
	now := time.Now().UTC()

	var updated core.Budget
	err := a.repo.WithTx(ctx, func(tx *storage.Tx) error {
		expense, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if !expense.Attached() {
			return fmt.Errorf("expense %d has no budget: %w", expenseID, core.ErrNotFound)
		}
		budget, err := tx.GetBudget(ctx, expense.BudgetID)
		if err != nil {
			return err
		}
		if err := tx.SetExpenseBudget(ctx, expense.ID, 0, expense.Version, now); err != nil {
			return err
		}
		expenses, err := tx.ListBudgetExpenses(ctx, budget.ID)
		if err != nil {
			return err
		}
		budget.Recompute(expenses)
		if err := tx.UpdateBudgetDerived(ctx, budget.ID, budget.Remaining, budget.Progress, budget.Version, now); err != nil {
			return err
		}
		budget.Version++
		budget.Touch(now)
		updated = budget
		return nil
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("detach expense: %w", err)
	}

	a.logger.InfoContext(ctx, "Expense detached from budget",
		log.FieldOperation, log.OpDetach,
		log.FieldBudgetID, updated.ID,
		log.FieldExpenseID, expenseID)
	return updated, nil
}

// RecomputeRemaining re-derives remaining/progress from the attached expense
// set. Idempotent; exposed as a standalone repair path.
func (a *BudgetAllocator) RecomputeRemaining(ctx context.Context, budgetID int64) (core.Budget, error) {
	now := time.Now().UTC()

	var updated core.Budget
	err := a.repo.WithTx(ctx, func(tx *storage.Tx) error {
		budget, err := tx.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		expenses, err := tx.ListBudgetExpenses(ctx, budget.ID)
		if err != nil {
			return err
		}
		budget.Recompute(expenses)
		if err := tx.UpdateBudgetDerived(ctx, budget.ID, budget.Remaining, budget.Progress, budget.Version, now); err != nil {
			return err
		}
		budget.Version++
		budget.Touch(now)
		updated = budget
		return nil
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("recompute budget: %w", err)
	}

	a.logger.InfoContext(ctx, "Budget derived fields recomputed",
		log.FieldOperation, log.OpRecompute,
		log.FieldBudgetID, updated.ID)
	return updated, nil
}

func recomputeBudget(ctx context.Context, tx *storage.Tx, budgetID int64, now time.Time) error {
	budget, err := tx.GetBudget(ctx, budgetID)
	if err != nil {
		return err
	}
	expenses, err := tx.ListBudgetExpenses(ctx, budgetID)
	if err != nil {
		return err
	}
	budget.Recompute(expenses)
	return tx.UpdateBudgetDerived(ctx, budget.ID, budget.Remaining, budget.Progress, budget.Version, now)
}
