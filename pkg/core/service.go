package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Service applies the store rules on top of a Repository. It is what the
// HTTP layer and the CLI talk to.
type Service struct {
	repo   Repository
	logger *slog.Logger

	mu       sync.RWMutex
	saves    int
	imports  int
	lastSave *time.Time
}

// NewService creates a new Service. A nil logger discards output.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// Initialize prepares the underlying repository.
func (s *Service) Initialize(ctx context.Context) error {
	return s.repo.Initialize(ctx)
}

// Load returns the whole document.
func (s *Service) Load(ctx context.Context) (Document, error) {
	return s.repo.ReadDocument(ctx)
}

// ReadStore returns a single store by its client facing name.
func (s *Service) ReadStore(ctx context.Context, name string) (any, error) {
	store, _, err := LookupStore(name)
	if err != nil {
		return nil, err
	}
	return s.repo.ReadStore(ctx, store)
}

// SaveStore writes data into the named store. For keyed stores a non-empty
// key merges data under that key; otherwise the store is replaced.
func (s *Service) SaveStore(ctx context.Context, name string, data any, key string) error {
	store, spec, err := LookupStore(name)
	if err != nil {
		return err
	}
	if !spec.Keyed && key != "" {
		s.logger.Debug("key ignored for non keyed store", "store", store, "key", key)
		key = ""
	}

	if err := s.repo.WriteStore(ctx, store, data, key); err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.saves++
	s.lastSave = &now
	s.mu.Unlock()

	s.logger.Debug("store saved", "store", store, "key", key)
	return nil
}

// Import replaces the whole document. doc must already be normalized.
func (s *Service) Import(ctx context.Context, doc Document) error {
	if err := s.repo.Import(ctx, doc); err != nil {
		return err
	}

	s.mu.Lock()
	s.imports++
	s.mu.Unlock()

	s.logger.Info("document imported", "accounts", len(doc.Accounts), "goals", len(doc.Goals))
	return nil
}

// Watch observes external changes in the repository if supported.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, errors.New("repository does not support watching")
	}
	return w.Watch(ctx, pattern)
}

// Close drains pending writes of repositories that hold background
// resources. It is a no-op for the others.
func (s *Service) Close(ctx context.Context) error {
	if c, ok := s.repo.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// Repository exposes the underlying repository.
func (s *Service) Repository() Repository {
	return s.repo
}
