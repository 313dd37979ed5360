// Package refreshtokens declares the server-side repository contract for
// single-use refresh tokens, with Postgres and in-memory implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/partfinder/partfinder/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID that expires at expires.
	Create(ctx context.Context, userID string, token string, expires time.Time) error

	// Consume removes the token and returns what it was issued for. A token
	// can be consumed once; later calls return common.ErrorNotFound. Expired
	// tokens are consumed too and the caller checks Expires.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// DeleteForUser revokes every refresh token of userID.
	DeleteForUser(ctx context.Context, userID string) error
}
