package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shalev007/restbook/internal/config"
)

// DefaultStorePath — файл именованных сессий по умолчанию.
const DefaultStorePath = "~/.restbook/sessions.json"

// Store — файловое хранилище именованных сессий.
//
// Сессии, объявленные в плейбуке, имеют приоритет над сохранёнными;
// хранилище нужно для сессий, переиспользуемых между плейбуками.
type Store struct {
	path string

	mu       sync.Mutex
	sessions map[string]config.SessionConfig
}

// NewStore открывает хранилище по пути path.
// Префикс "~/" разворачивается в домашний каталог.
func NewStore(path string) (*Store, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: expanded, sessions: map[string]config.SessionConfig{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get возвращает конфигурацию сохранённой сессии.
func (s *Store) Get(name string) (config.SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.sessions[name]
	if !ok {
		return config.SessionConfig{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cfg, nil
}

// List возвращает имена сохранённых сессий в алфавитном порядке.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upsert сохраняет или обновляет сессию.
func (s *Store) Upsert(name string, cfg config.SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[name] = cfg
	return s.save()
}

// Delete удаляет сессию.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.sessions, name)
	return s.save()
}

func (s *Store) load() error {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session store: %w", err)
	}
	if err := json.Unmarshal(payload, &s.sessions); err != nil {
		return fmt.Errorf("parse session store: %w", err)
	}
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session store directory: %w", err)
	}
	payload, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}
	// Файл содержит учётные данные
	if err := os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
