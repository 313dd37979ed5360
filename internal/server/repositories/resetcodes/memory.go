package resetcodes

import (
	"context"
	"sync"

	"github.com/partfinder/partfinder/internal/common"
	"github.com/partfinder/partfinder/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.Mutex
	codes map[string]models.ResetCode
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{codes: make(map[string]models.ResetCode)}
}

func (r *MemoryRepository) Save(_ context.Context, code *models.ResetCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.Email] = *code
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, email string) (*models.ResetCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.codes[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rc, nil
}

func (r *MemoryRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, email)
	return nil
}
