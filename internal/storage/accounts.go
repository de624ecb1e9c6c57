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

// CreateAccount inserts a fresh account with a zero balance cache. One
// account per user; a duplicate insert fails on the unique index.
func (s queries) CreateAccount(ctx context.Context, userID string, now time.Time) (core.Account, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance_cents, version, created_at, updated_at)
		VALUES (?, 0, 1, ?, ?)`,
		userID, fmtTime(now), fmtTime(now))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return core.Account{
		ID:        id,
		UserID:    userID,
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (s queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.scanAccount(s.q.QueryRowContext(ctx, `
		SELECT id, user_id, balance_cents, balance_refreshed_at, version, created_at, updated_at
		FROM accounts WHERE id = ?`, id))
}

func (s queries) GetAccountByUser(ctx context.Context, userID string) (core.Account, error) {
	return s.scanAccount(s.q.QueryRowContext(ctx, `
		SELECT id, user_id, balance_cents, balance_refreshed_at, version, created_at, updated_at
		FROM accounts WHERE user_id = ?`, userID))
}

func (s queries) scanAccount(row *sql.Row) (core.Account, error) {
	var (
		a            core.Account
		cents        int64
		refreshedAt  sql.NullString
		created, upd string
	)
	err := row.Scan(&a.ID, &a.UserID, &cents, &refreshedAt, &a.Version, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Balance = core.FromCents(cents)
	if refreshedAt.Valid {
		a.BalanceRefreshedAt = parseTime(refreshedAt.String)
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(upd)
	return a, nil
}

// UpdateAccountBalance overwrites the cached balance, guarded by the version
// token read alongside it. Zero rows affected means either the account is
// gone (ErrNotFound) or someone else refreshed it first (ErrConflict).
func (s queries) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, refreshedAt time.Time, version int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = ?, balance_refreshed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		core.ToCents(balance), fmtTime(refreshedAt), fmtTime(refreshedAt), id, version)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if affected == 0 {
		return s.staleWriteError(ctx, "accounts", id)
	}
	return nil
}

// staleWriteError distinguishes a vanished row from a version mismatch after
// a guarded update matched nothing.
func (s queries) staleWriteError(ctx context.Context, table string, id int64) error {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return fmt.Errorf("%s %d: %w", table, id, core.ErrConflict)
}
