package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by both services and their clients. Handlers and
// message consumers branch on these four with errors.Is; everything else is
// an internal failure.
var (
	// ErrNotFound marks a lookup whose target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks input the caller can fix: validation failures,
	// malformed amounts, inverted periods.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict marks an optimistic-version mismatch. Re-fetch and retry.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks a failure worth retrying later: an unreachable
	// peer, a timeout, a 5xx from a collaborator.
	ErrTransient = errors.New("transient failure")
)

// Validation sentinels, all of them ErrBadRequest.
var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrBadRequest)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrBadRequest)
	ErrInvalidPeriod   = fmt.Errorf("%w: invalid period", ErrBadRequest)
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrBadRequest)
	ErrEmptyLabel      = fmt.Errorf("%w: label must not be empty", ErrBadRequest)
	ErrMissingUser     = fmt.Errorf("%w: user id must not be empty", ErrBadRequest)
	ErrMissingAccount  = fmt.Errorf("%w: account id must be set", ErrBadRequest)
)
