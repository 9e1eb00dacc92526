package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/request"
)

// DefaultDir — каталог файлового хранилища по умолчанию.
const DefaultDir = "~/.restbook/checkpoints"

// SessionResolver возвращает сессию по имени для удалённого хранилища.
type SessionResolver func(name string) (request.Session, error)

// NewStore создаёт хранилище точек по секции incremental.
// Возвращает (nil, nil), если контрольные точки выключены.
func NewStore(ctx context.Context, cfg *config.IncrementalConfig, resolve SessionResolver, logger *slog.Logger) (Store, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Store {
	case config.CheckpointStoreFile:
		dir := cfg.FilePath
		if dir == "" {
			dir = DefaultDir
		}
		return NewFileStore(dir)

	case config.CheckpointStoreRemote:
		session, err := resolve(cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("resolve checkpoint session %q: %w", cfg.Session, err)
		}
		return NewRemoteStore(session, cfg.Endpoint, logger), nil

	case config.CheckpointStorePostgres:
		return NewPostgresStore(ctx, cfg.DSN)

	default:
		return nil, fmt.Errorf("unknown checkpoint store %q", cfg.Store)
	}
}
