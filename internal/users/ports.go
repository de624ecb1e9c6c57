// Package users defines the lookup interface for the user directory.
package users

import "context"

// User is the directory record needed to address a notification.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Directory resolves users by ID. An unknown user is core.ErrNotFound.
type Directory interface {
	FindByID(ctx context.Context, userID string) (User, error)
}
