package cart

import (
	"context"
	"sync"

	"github.com/dcutelaria/storefront/internal/models"
)

// MemoryStore keeps cart sessions in process memory. Used in tests and as the
// fallback when no Redis address is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Cart)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return nil, ErrCartNotFound
	}
	copied := c
	copied.Lines = append([]models.CartLine(nil), c.Lines...)
	return &copied, nil
}

func (s *MemoryStore) Save(ctx context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	stored.Lines = append([]models.CartLine(nil), c.Lines...)
	s.carts[c.SessionID] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, sessionID)
	return nil
}
