package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/core"
	ledgermem "finanzen/internal/ledger/memory"
)

type fakeAccountStore struct {
	mu      sync.Mutex
	accts   map[int64]core.Account
	updates int

	updateErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accts: make(map[int64]core.Account)}
}

func (s *fakeAccountStore) add(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accts[a.ID] = a
}

func (s *fakeAccountStore) get(id int64) core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accts[id]
}

func (s *fakeAccountStore) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *fakeAccountStore) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, refreshedAt time.Time, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.accts[id]
	if !ok {
		return core.ErrNotFound
	}
	if a.Version != version {
		return core.ErrConflict
	}
	a.Balance = balance
	a.BalanceRefreshedAt = refreshedAt
	a.Version++
	s.accts[id] = a
	s.updates++
	return nil
}

func TestBalanceAggregatorRecompute(t *testing.T) {
	store := newFakeAccountStore()
	store.add(core.Account{ID: 1, UserID: "user-1", Balance: decimal.Zero, Version: 1})

	ldg := ledgermem.NewLedger()
	ldg.SetSums(1, mustDecimal(t, "3000"), mustDecimal(t, "1875.50"))

	agg := NewBalanceAggregator(store, ldg, time.Second, newTestLogger())

	balance, err := agg.RecomputeBalance(context.Background(), 1, core.CurrentMonth(time.Now().UTC()))
	if err != nil {
		t.Fatalf("RecomputeBalance() error = %v", err)
	}
	if !balance.Equal(mustDecimal(t, "1124.50")) {
		t.Errorf("balance = %s, want 1124.50", balance)
	}

	acct := store.get(1)
	if !acct.Balance.Equal(balance) {
		t.Errorf("cached balance = %s, want %s", acct.Balance, balance)
	}
	if acct.BalanceRefreshedAt.IsZero() {
		t.Error("refresh timestamp not set")
	}
	if acct.Version != 2 {
		t.Errorf("version = %d, want 2", acct.Version)
	}
}

func TestBalanceAggregatorRecomputeIdempotent(t *testing.T) {
	store := newFakeAccountStore()
	store.add(core.Account{ID: 1, UserID: "user-1", Balance: decimal.Zero, Version: 1})

	ldg := ledgermem.NewLedger()
	ldg.SetSums(1, mustDecimal(t, "100"), mustDecimal(t, "40"))

	agg := NewBalanceAggregator(store, ldg, time.Second, newTestLogger())
	p := core.CurrentMonth(time.Now().UTC())

	first, err := agg.RecomputeBalance(context.Background(), 1, p)
	if err != nil {
		t.Fatalf("first RecomputeBalance() error = %v", err)
	}
	second, err := agg.RecomputeBalance(context.Background(), 1, p)
	if err != nil {
		t.Fatalf("second RecomputeBalance() error = %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("recompute not idempotent: %s then %s", first, second)
	}
}

func TestBalanceAggregatorFailuresLeaveCacheUntouched(t *testing.T) {
	seed := core.Account{
		ID:                 1,
		UserID:             "user-1",
		Balance:            mustDecimal(t, "55.25"),
		BalanceRefreshedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		Version:            3,
	}

	tests := []struct {
		name    string
		setup   func(*fakeAccountStore, *ledgermem.Ledger)
		wantErr error
	}{
		{
			name: "unknown account",
			setup: func(s *fakeAccountStore, l *ledgermem.Ledger) {
				l.SetSums(2, decimal.Zero, decimal.Zero)
			},
			wantErr: core.ErrNotFound,
		},
		{
			name: "ledger transient failure",
			setup: func(s *fakeAccountStore, l *ledgermem.Ledger) {
				l.Err = core.ErrTransient
			},
			wantErr: core.ErrTransient,
		},
		{
			name: "write conflict",
			setup: func(s *fakeAccountStore, l *ledgermem.Ledger) {
				l.SetSums(1, mustDecimal(t, "10"), decimal.Zero)
				s.updateErr = core.ErrConflict
			},
			wantErr: core.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeAccountStore()
			store.add(seed)
			ldg := ledgermem.NewLedger()
			tt.setup(store, ldg)

			agg := NewBalanceAggregator(store, ldg, time.Second, newTestLogger())

			accountID := int64(1)
			if tt.name == "unknown account" {
				accountID = 2
			}
			_, err := agg.RecomputeBalance(context.Background(), accountID, core.CurrentMonth(time.Now().UTC()))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RecomputeBalance() error = %v, want %v", err, tt.wantErr)
			}

			acct := store.get(1)
			if !acct.Balance.Equal(seed.Balance) {
				t.Errorf("cached balance changed to %s, want %s", acct.Balance, seed.Balance)
			}
			if !acct.BalanceRefreshedAt.Equal(seed.BalanceRefreshedAt) {
				t.Errorf("refresh timestamp changed to %v", acct.BalanceRefreshedAt)
			}
		})
	}
}

func TestBalanceAggregatorTimeout(t *testing.T) {
	store := newFakeAccountStore()
	store.add(core.Account{ID: 1, UserID: "user-1", Balance: mustDecimal(t, "10"), Version: 1})

	ldg := ledgermem.NewLedger()
	ldg.SetSums(1, mustDecimal(t, "100"), mustDecimal(t, "40"))
	ldg.Delay = make(chan struct{}) // never released

	agg := NewBalanceAggregator(store, ldg, 50*time.Millisecond, newTestLogger())

	_, err := agg.RecomputeBalance(context.Background(), 1, core.CurrentMonth(time.Now().UTC()))
	if !errors.Is(err, core.ErrTransient) {
		t.Fatalf("RecomputeBalance() error = %v, want ErrTransient", err)
	}

	acct := store.get(1)
	if !acct.Balance.Equal(mustDecimal(t, "10")) {
		t.Errorf("cached balance changed to %s after timeout", acct.Balance)
	}
}

func TestBalanceAggregatorInvalidPeriod(t *testing.T) {
	store := newFakeAccountStore()
	store.add(core.Account{ID: 1, UserID: "user-1", Version: 1})

	agg := NewBalanceAggregator(store, ledgermem.NewLedger(), time.Second, newTestLogger())

	p := core.Period{
		From: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := agg.RecomputeBalance(context.Background(), 1, p)
	if !errors.Is(err, core.ErrBadRequest) {
		t.Errorf("RecomputeBalance() error = %v, want ErrBadRequest", err)
	}
}

func TestBalanceAggregatorCachedBalance(t *testing.T) {
	store := newFakeAccountStore()
	refreshed := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	store.add(core.Account{
		ID:                 1,
		UserID:             "user-1",
		Balance:            mustDecimal(t, "777.77"),
		BalanceRefreshedAt: refreshed,
		Version:            5,
	})

	ldg := ledgermem.NewLedger()
	agg := NewBalanceAggregator(store, ldg, time.Second, newTestLogger())

	acct, err := agg.CachedBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("CachedBalance() error = %v", err)
	}
	if !acct.Balance.Equal(mustDecimal(t, "777.77")) {
		t.Errorf("balance = %s, want 777.77", acct.Balance)
	}
	if !acct.BalanceRefreshedAt.Equal(refreshed) {
		t.Errorf("refreshed at = %v, want %v", acct.BalanceRefreshedAt, refreshed)
	}
	// The cached read must not fan out to the records service.
	if ldg.Calls() != 0 {
		t.Errorf("ledger calls = %d, want 0", ldg.Calls())
	}

	if _, err := agg.CachedBalance(context.Background(), 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("CachedBalance() unknown account error = %v, want ErrNotFound", err)
	}
}
