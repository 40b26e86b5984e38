// Package typed gives type-safe access to single stores of the tally
// document, e.g. the goals as []core.Goal or a timeline as core.TimelineData.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tally/pkg/core"
)

// Model wraps a typed store value. Key is set for values living under a
// sub-key of a keyed store.
type Model[T any] struct {
	Store core.StoreName
	Key   string
	Data  T
	Saver Saver[T] // Active Record reference interface
}

// Saver interface avoids circular dependencies or tight coupling with Repository/Service structs.
type Saver[T any] interface {
	Save(ctx context.Context, m *Model[T]) error
}

// Save persists the model using the attached saver (Repository or Service).
func (m *Model[T]) Save(ctx context.Context) error {
	if m.Saver == nil {
		return fmt.Errorf("model is detached (missing Saver)")
	}
	return m.Saver.Save(ctx, m)
}

// Repository wraps a core.Repository to provide type-safe access to one store.
type Repository[T any] struct {
	repo  core.Repository
	store core.StoreName
}

// NewRepository creates a typed view of store. It fails for unknown stores.
func NewRepository[T any](repo core.Repository, store core.StoreName) (*Repository[T], error) {
	if _, _, err := core.LookupStore(string(store)); err != nil {
		return nil, err
	}
	return &Repository[T]{repo: repo, store: store}, nil
}

// Get reads the whole store.
func (r *Repository[T]) Get(ctx context.Context) (*Model[T], error) {
	value, err := r.repo.ReadStore(ctx, r.store)
	if err != nil {
		return nil, err
	}
	return toModel[T](r.store, "", value, r)
}

// GetKey reads the value stored under key of a keyed store. A missing key
// yields the zero value.
func (r *Repository[T]) GetKey(ctx context.Context, key string) (*Model[T], error) {
	value, err := r.repo.ReadStore(ctx, r.store)
	if err != nil {
		return nil, err
	}
	mapping, ok := value.(core.Mapping)
	if !ok {
		return nil, fmt.Errorf("store %s has no keys", r.store)
	}
	return toModel[T](r.store, key, mapping[key], r)
}

// Save persists a typed model.
func (r *Repository[T]) Save(ctx context.Context, m *Model[T]) error {
	value, err := toGeneric(m.Data)
	if err != nil {
		return err
	}
	if m.Saver == nil {
		m.Saver = r
	}
	return r.repo.WriteStore(ctx, r.store, value, m.Key)
}

// toModel converts a generic store value to the typed model.
func toModel[T any](store core.StoreName, key string, value any, saver Saver[T]) (*Model[T], error) {
	var data T
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("store marshal failed: %w", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal to target type failed: %w", err)
		}
	}
	return &Model[T]{Store: store, Key: key, Data: data, Saver: saver}, nil
}

func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert typed data: %w", err)
	}
	return out, nil
}
