// Package resetcodes stores pending password-reset codes, one per email.
package resetcodes

import (
	"context"

	"github.com/partfinder/partfinder/internal/server/models"
)

type Repository interface {
	// Save stores code, replacing any earlier code for the same email.
	Save(ctx context.Context, code *models.ResetCode) error
	// Find returns common.ErrorNotFound when email has no pending code.
	Find(ctx context.Context, email string) (*models.ResetCode, error)
	Delete(ctx context.Context, email string) error
}
