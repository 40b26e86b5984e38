package platform

import (
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/typed"
)

// OpenTypedRepository initializes the data directory and returns a typed
// view of one store.
func OpenTypedRepository[T any](dir string, store core.StoreName, opts ...Option) (*typed.Repository[T], error) {
	repo, err := Init(dir, opts...)
	if err != nil {
		return nil, err
	}
	return typed.NewRepository[T](repo, store)
}

// OpenTypedService creates the service and returns a typed view of one
// store. Saves through it follow the service rules, e.g. account ids.
func OpenTypedService[T any](dir string, store core.StoreName, opts ...Option) (*typed.Service[T], error) {
	svc, err := New(dir, opts...)
	if err != nil {
		return nil, err
	}
	return typed.NewService[T](svc, store)
}
