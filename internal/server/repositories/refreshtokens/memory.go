package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/partfinder/partfinder/internal/common"
	"github.com/partfinder/partfinder/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) Create(_ context.Context, userID string, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; ok {
		return common.ErrorAlreadyExists
	}
	r.tokens[token] = models.RefreshToken{
		UserID:    userID,
		Token:     token,
		Expires:   expires,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.tokens, token)
	return &rt, nil
}

func (r *MemoryRepository) DeleteForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for tok, rt := range r.tokens {
		if rt.UserID == userID {
			delete(r.tokens, tok)
		}
	}
	return nil
}
