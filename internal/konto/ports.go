// Package konto defines the read interface other services use to resolve
// accounts on the account service.
package konto

import (
	"context"

	"finanzen/internal/core"
)

// Reader resolves accounts by ID. An unknown account is core.ErrNotFound;
// retryable transport failures are core.ErrTransient. The records service
// uses it to verify an account exists before accepting records for it.
type Reader interface {
	FindAccount(ctx context.Context, accountID int64) (core.Account, error)
}
