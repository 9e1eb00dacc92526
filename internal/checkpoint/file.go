package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore хранит контрольные точки в JSON-файлах на диске.
// Файл точки называется "<hash>.json".
type FileStore struct {
	dir string
}

// NewFileStore создаёт файловое хранилище в каталоге dir.
// Префикс "~/" разворачивается в домашний каталог.
func NewFileStore(dir string) (*FileStore, error) {
	expanded, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{dir: expanded}, nil
}

// Save записывает точку атомарно через временный файл.
func (s *FileStore) Save(_ context.Context, hash string, data *Data) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	path := s.path(hash)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load читает точку или возвращает (nil, nil), если файла нет.
func (s *FileStore) Load(_ context.Context, hash string) (*Data, error) {
	payload, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &data, nil
}

// Clear удаляет файл точки.
func (s *FileStore) Clear(_ context.Context, hash string) error {
	if err := os.Remove(s.path(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

// Close ничего не делает для файлового хранилища.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(hash string) string {
	return filepath.Join(s.dir, hash+".json")
}

// expandHome разворачивает "~/" в начале пути.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
