// Package users declares the account repository of the development auth
// backend and its Postgres and in-memory implementations.
package users

import (
	"context"

	"github.com/partfinder/partfinder/internal/server/models"
)

// Repository stores accounts. Emails are compared as given; callers
// normalize them first.
type Repository interface {
	// Create inserts user. A taken email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByEmail returns common.ErrorNotFound when no account uses email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
