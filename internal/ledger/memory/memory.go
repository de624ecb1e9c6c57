// Package memory provides an in-memory ledger for tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
)

type sums struct {
	income  decimal.Decimal
	expense decimal.Decimal
}

// Ledger is a fixture-backed stand-in for the records service. Sums are set
// per account and returned regardless of period; Err, when set, is returned
// by every call.
type Ledger struct {
	mu    sync.Mutex
	accts map[int64]sums
	goals []core.Goal

	// Err forces every call to fail, for exercising degraded paths.
	Err error
	// Delay, when non-nil, is waited on before answering. Close it to
	// release blocked calls; pair with a short caller timeout to test
	// deadline behavior.
	Delay chan struct{}

	calls int
}

func NewLedger() *Ledger {
	return &Ledger{accts: make(map[int64]sums)}
}

// SetSums registers the period totals reported for an account.
func (l *Ledger) SetSums(accountID int64, income, expense decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accts[accountID] = sums{income: income, expense: expense}
}

// AddGoal appends a goal to the fixture set.
func (l *Ledger) AddGoal(g core.Goal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.goals = append(l.goals, g)
}

// Calls reports how many port calls were made.
func (l *Ledger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *Ledger) SumIncome(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	s, err := l.lookup(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.income, nil
}

func (l *Ledger) SumExpense(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	s, err := l.lookup(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.expense, nil
}

func (l *Ledger) ListGoals(ctx context.Context) ([]core.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.Err != nil {
		return nil, l.Err
	}
	out := make([]core.Goal, len(l.goals))
	copy(out, l.goals)
	return out, nil
}

func (l *Ledger) lookup(ctx context.Context, accountID int64) (sums, error) {
	l.mu.Lock()
	delay := l.Delay
	l.calls++
	err := l.Err
	s, ok := l.accts[accountID]
	l.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return sums{}, ctx.Err()
		}
	}
	if err != nil {
		return sums{}, err
	}
	if !ok {
		return sums{}, core.ErrNotFound
	}
	return s, nil
}
