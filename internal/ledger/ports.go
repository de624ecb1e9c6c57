// Package ledger defines the read interfaces other services use to query the
// financial-records service, plus an HTTP client and an in-memory fake.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
)

// Summer reports period totals over an account's records. Implementations
// translate transport failures into the shared error taxonomy: an unknown
// account is core.ErrNotFound, anything retryable is core.ErrTransient.
type Summer interface {
	SumIncome(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error)
	SumExpense(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error)
}

// GoalLister returns every financial goal known to the records service.
type GoalLister interface {
	ListGoals(ctx context.Context) ([]core.Goal, error)
}
