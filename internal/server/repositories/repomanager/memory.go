package repomanager

import (
	"context"
	"sync"

	"github.com/partfinder/partfinder/internal/server/repositories/refreshtokens"
	"github.com/partfinder/partfinder/internal/server/repositories/resetcodes"
	"github.com/partfinder/partfinder/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps all state in process memory. WithTx runs
// units of work one at a time; a failing unit is not rolled back.
type MemoryRepositoryManager struct {
	txMu  sync.Mutex
	repos Repositories
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		repos: Repositories{
			Users:         users.NewMemoryRepository(),
			RefreshTokens: refreshtokens.NewMemoryRepository(),
			ResetCodes:    resetcodes.NewMemoryRepository(),
		},
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Repos() Repositories {
	return m.repos
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m.repos)
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}

