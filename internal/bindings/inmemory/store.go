package inmemory

import (
	"context"
	"sync"

	"github.com/openfabric/pipeliner/internal/models"
)

// Store keeps next-group bindings in process memory. Used in tests and in
// single-process deployments that do not need bindings to survive a
// restart.
type Store struct {
	mu       *sync.Mutex
	bindings map[uint32]models.NextGroupBinding
}

func NewStore() *Store {
	return &Store{
		mu:       &sync.Mutex{},
		bindings: make(map[uint32]models.NextGroupBinding, 64),
	}
}

func (s *Store) Put(ctx context.Context, binding models.NextGroupBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings[binding.NextID] = binding
	return nil
}

func (s *Store) Get(ctx context.Context, nextID uint32) (*models.NextGroupBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	binding, exists := s.bindings[nextID]
	if !exists {
		return nil, models.ErrGroupMissing
	}
	return &binding, nil
}
