// Package memory provides an in-memory account reader for tests and local
// runs.
package memory

import (
	"context"
	"sync"

	"finanzen/internal/core"
)

// Accounts is a fixture-backed konto.Reader. Err, when set, is returned by
// every call.
type Accounts struct {
	mu    sync.Mutex
	accts map[int64]core.Account

	Err error
}

func NewAccounts() *Accounts {
	return &Accounts{accts: make(map[int64]core.Account)}
}

func (a *Accounts) Add(acct core.Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accts[acct.ID] = acct
}

func (a *Accounts) FindAccount(ctx context.Context, accountID int64) (core.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return core.Account{}, a.Err
	}
	acct, ok := a.accts[accountID]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return acct, nil
}
