package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finanzen/internal/core"
	"finanzen/internal/ledger"
	"finanzen/internal/log"
)

// AccountStore is the slice of account persistence the aggregator needs.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, refreshedAt time.Time, version int64) error
}

// BalanceAggregator derives an account's balance from the records service
// (income total minus expense total) and caches the result on the account
// row. The cached value is explicitly allowed to be stale; the refresh
// timestamp tells readers how stale.
type BalanceAggregator struct {
	accounts AccountStore
	ledger   ledger.Summer
	timeout  time.Duration
	logger   *log.Logger
}

func NewBalanceAggregator(accounts AccountStore, summer ledger.Summer, timeout time.Duration, logger *log.Logger) *BalanceAggregator {
	return &BalanceAggregator{
		accounts: accounts,
		ledger:   summer,
		timeout:  timeout,
		logger:   logger.WithComponent(log.ComponentAggregator),
	}
}

// RecomputeBalance fetches both period totals concurrently, writes the fresh
// balance back under the account's version token and returns it. On any
// failure the cached balance and its refresh timestamp stay untouched.
func (b *BalanceAggregator) RecomputeBalance(ctx context.Context, accountID int64, p core.Period) (decimal.Decimal, error) {
	if err := p.Validate(); err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}
	acct, err := b.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var incomeSum, expenseSum decimal.Decimal
	g, gctx := errgroup.WithContext(rctx)
	g.Go(func() error {
		var err error
		incomeSum, err = b.ledger.SumIncome(gctx, accountID, p)
		return err
	})
	g.Go(func() error {
		var err error
		expenseSum, err = b.ledger.SumExpense(gctx, accountID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: ledger timed out: %v", core.ErrTransient, err)
		}
		b.logger.WarnContext(ctx, "Balance recompute failed, cache left as is",
			log.FieldAccountID, accountID,
			log.FieldError, err.Error())
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}

	balance := incomeSum.Sub(expenseSum)
	now := time.Now().UTC()
	if err := b.accounts.UpdateAccountBalance(ctx, accountID, balance, now, acct.Version); err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}

	b.logger.InfoContext(ctx, "Account balance refreshed",
		log.FieldAccountID, accountID,
		log.FieldBalance, balance.String(),
		log.FieldPeriod, p.String())
	return balance, nil
}

// CachedBalance returns the stored balance without touching the records
// service. Callers read the refresh timestamp to judge staleness.
func (b *BalanceAggregator) CachedBalance(ctx context.Context, accountID int64) (core.Account, error) {
	acct, err := b.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("cached balance: %w", err)
	}
	return acct, nil
}
