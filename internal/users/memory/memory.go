// Package memory provides an in-memory user directory for tests and local
// runs.
package memory

import (
	"context"
	"sync"

	"finanzen/internal/core"
	"finanzen/internal/users"
)

// Directory is a fixture-backed users.Directory. Err, when set, is returned
// by every call.
type Directory struct {
	mu    sync.Mutex
	byID  map[string]users.User

	Err error
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]users.User)}
}

func (d *Directory) Add(u users.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[u.ID] = u
}

func (d *Directory) FindByID(ctx context.Context, userID string) (users.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return users.User{}, d.Err
	}
	u, ok := d.byID[userID]
	if !ok {
		return users.User{}, core.ErrNotFound
	}
	return u, nil
}
