package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tally/pkg/core"
)

// MockRepository implements core.Repository in memory.
// It deliberately does NOT implement core.Watchable or core.Closer.
type MockRepository struct {
	doc      core.Document
	imported bool
	writes   []string
}

func NewMockRepository() *MockRepository {
	return &MockRepository{doc: core.NewDocument()}
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

func (m *MockRepository) ReadDocument(ctx context.Context) (core.Document, error) {
	return m.doc, nil
}

func (m *MockRepository) WriteDocument(ctx context.Context, doc core.Document) error {
	m.doc = doc
	return nil
}

func (m *MockRepository) ReadStore(ctx context.Context, name core.StoreName) (any, error) {
	return m.doc.Get(name), nil
}

func (m *MockRepository) WriteStore(ctx context.Context, name core.StoreName, value any, key string) error {
	m.writes = append(m.writes, string(name)+"/"+key)
	switch name {
	case core.StoreSettings:
		m.doc.Settings = value.(map[string]any)
	case core.StoreGoals:
		m.doc.Goals = value.([]any)
	}
	return nil
}

func (m *MockRepository) Import(ctx context.Context, doc core.Document) error {
	m.imported = true
	m.doc = doc
	return nil
}

func TestService_SaveAndLoad(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo, nil)
	ctx := context.TODO()

	if err := service.SaveStore(ctx, "settings", map[string]any{"theme": "dark"}, ""); err != nil {
		t.Fatalf("SaveStore failed: %v", err)
	}

	doc, err := service.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Settings["theme"] != "dark" {
		t.Errorf("expected theme 'dark', got %v", doc.Settings["theme"])
	}

	got, err := service.ReadStore(ctx, "settings")
	if err != nil {
		t.Fatalf("ReadStore failed: %v", err)
	}
	if got.(core.Mapping)["theme"] != "dark" {
		t.Errorf("unexpected store value %v", got)
	}

	state := service.State().(core.ServiceState)
	if state.Saves != 1 || state.LastSave == nil {
		t.Errorf("unexpected state %+v", state)
	}
	if state.RepositoryType != "repository" {
		t.Errorf("expected generic repository type, got %s", state.RepositoryType)
	}
}

func TestService_UnknownStore(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo, nil)
	ctx := context.TODO()

	err := service.SaveStore(ctx, "passwords", []any{}, "")
	if !errors.Is(err, core.ErrUnknownStore) {
		t.Fatalf("expected ErrUnknownStore, got %v", err)
	}
	if len(repo.writes) != 0 {
		t.Errorf("repository must not be touched, got writes %v", repo.writes)
	}

	if _, err := service.ReadStore(ctx, "Accounts"); !errors.Is(err, core.ErrUnknownStore) {
		t.Errorf("store names are case sensitive, got %v", err)
	}
}

func TestService_KeyOnlyForKeyedStores(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo, nil)
	ctx := context.TODO()

	_ = service.SaveStore(ctx, "goals", []any{}, "ignored")
	_ = service.SaveStore(ctx, "timeline", map[string]any{}, "timelineData")

	want := []string{"goals/", "timeline/timelineData"}
	if len(repo.writes) != len(want) {
		t.Fatalf("expected %v, got %v", want, repo.writes)
	}
	for i := range want {
		if repo.writes[i] != want[i] {
			t.Errorf("write %d: expected %s, got %s", i, want[i], repo.writes[i])
		}
	}
}

func TestService_Import(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo, nil)

	doc := core.NewDocument()
	doc.Accounts = []core.Account{{ID: 1, Name: "Rent"}}
	if err := service.Import(context.TODO(), doc); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !repo.imported {
		t.Error("expected repository import")
	}
	if state := service.State().(core.ServiceState); state.Imports != 1 {
		t.Errorf("expected 1 import, got %d", state.Imports)
	}
}

func TestService_Unsupported(t *testing.T) {
	service := core.NewService(NewMockRepository(), nil)

	if _, err := service.Watch(context.TODO(), ""); err == nil {
		t.Error("expected error for non-watchable repo")
	}
	if err := service.Close(context.TODO()); err != nil {
		t.Errorf("close of a plain repository should be a no-op, got %v", err)
	}
}
