// Package repomanager hands out the repositories of the development auth
// backend for the configured store and runs units of work against them.
package repomanager

import (
	"context"

	"github.com/partfinder/partfinder/internal/server/repositories/refreshtokens"
	"github.com/partfinder/partfinder/internal/server/repositories/resetcodes"
	"github.com/partfinder/partfinder/internal/server/repositories/users"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository
	ResetCodes    resetcodes.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Repos returns repositories that run outside any transaction.
	Repos() Repositories
	// WithTx runs fn with repositories bound to a single transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Close() error
}

// Open returns the Postgres manager when dsn is set and the in-memory one
// otherwise.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	if dsn == "" {
		return NewMemoryRepositoryManager(), nil
	}
	m, err := OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}
