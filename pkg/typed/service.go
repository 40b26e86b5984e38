package typed

import (
	"context"

	"github.com/aretw0/tally/pkg/core"
)

// Service wraps a core.Service so typed saves go through the same store
// rules as client saves.
type Service[T any] struct {
	svc   *core.Service
	store core.StoreName
}

// NewService creates a typed service wrapper for store.
func NewService[T any](svc *core.Service, store core.StoreName) (*Service[T], error) {
	if _, _, err := core.LookupStore(string(store)); err != nil {
		return nil, err
	}
	return &Service[T]{svc: svc, store: store}, nil
}

// Save persists a typed model via the service.
func (s *Service[T]) Save(ctx context.Context, m *Model[T]) error {
	value, err := toGeneric(m.Data)
	if err != nil {
		return err
	}
	if m.Saver == nil {
		m.Saver = s
	}
	return s.svc.SaveStore(ctx, string(s.store), value, m.Key)
}

// Get reads the whole store via the service.
func (s *Service[T]) Get(ctx context.Context) (*Model[T], error) {
	value, err := s.svc.ReadStore(ctx, string(s.store))
	if err != nil {
		return nil, err
	}
	return toModel[T](s.store, "", value, s)
}

// Watch observes external changes in the repository.
func (s *Service[T]) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	return s.svc.Watch(ctx, pattern)
}
