package tally

import (
	"github.com/aretw0/tally/internal/platform"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/typed"
)

// Model is a public alias for the typed store model.
type Model[T any] = typed.Model[T]

// TypedRepository is a public alias for the typed repository.
type TypedRepository[T any] = typed.Repository[T]

// TypedService is a public alias for the typed service.
type TypedService[T any] = typed.Service[T]

// NewTypedRepository creates a typed view of one store of an existing repository.
func NewTypedRepository[T any](repo core.Repository, store core.StoreName) (*typed.Repository[T], error) {
	return typed.NewRepository[T](repo, store)
}

// NewTypedService creates a typed view of one store of an existing service.
func NewTypedService[T any](svc *core.Service, store core.StoreName) (*typed.Service[T], error) {
	return typed.NewService[T](svc, store)
}

// OpenTypedRepository simplifies creating a TypedRepository from a path.
func OpenTypedRepository[T any](dir string, store core.StoreName, opts ...Option) (*typed.Repository[T], error) {
	return platform.OpenTypedRepository[T](dir, store, opts...)
}

// OpenTypedService simplifies creating a TypedService from a path.
func OpenTypedService[T any](dir string, store core.StoreName, opts ...Option) (*typed.Service[T], error) {
	return platform.OpenTypedService[T](dir, store, opts...)
}
