package session

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shalev007/restbook/internal/config"
)

func TestStore_CRUD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Get("api"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cfg := config.SessionConfig{
		BaseURL: "https://api.example.com",
		Auth: &config.AuthConfig{
			Type:        config.AuthBearer,
			Credentials: map[string]string{"token": "secret"},
		},
	}
	if err := store.Upsert("api", cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Upsert("internal", config.SessionConfig{BaseURL: "https://internal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.List(); !reflect.DeepEqual(got, []string{"api", "internal"}) {
		t.Errorf("list = %v", got)
	}

	// Хранилище переживает переоткрытие
	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := reopened.Get("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.BaseURL != cfg.BaseURL || loaded.Auth.Credentials["token"] != "secret" {
		t.Errorf("got %+v", loaded)
	}

	if err := reopened.Delete("api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reopened.Get("api"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := reopened.Delete("api"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpsertOverwrites(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Upsert("api", config.SessionConfig{BaseURL: "https://old"})
	store.Upsert("api", config.SessionConfig{BaseURL: "https://new"})

	cfg, err := store.Get("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://new" {
		t.Errorf("got %q", cfg.BaseURL)
	}
	if len(store.List()) != 1 {
		t.Errorf("list = %v", store.List())
	}
}
