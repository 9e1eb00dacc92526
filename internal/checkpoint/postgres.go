package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS restbook_checkpoints (
	content_hash  TEXT PRIMARY KEY,
	current_phase INT NOT NULL,
	current_step  INT NOT NULL,
	variables     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at    TIMESTAMPTZ NOT NULL
)`

// PostgresStore хранит контрольные точки в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore подключается к базе и создаёт таблицу точек,
// если её ещё нет.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := pool.Exec(ctx, checkpointSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure checkpoint table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Save записывает точку через upsert по отпечатку.
func (s *PostgresStore) Save(ctx context.Context, hash string, data *Data) error {
	vars, err := json.Marshal(data.Variables)
	if err != nil {
		return fmt.Errorf("marshal checkpoint variables: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO restbook_checkpoints (content_hash, current_phase, current_step, variables, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_hash) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			current_step  = EXCLUDED.current_step,
			variables     = EXCLUDED.variables,
			updated_at    = EXCLUDED.updated_at`,
		hash, data.CurrentPhase, data.CurrentStep, vars, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load читает точку или возвращает (nil, nil), если её нет.
func (s *PostgresStore) Load(ctx context.Context, hash string) (*Data, error) {
	var (
		data Data
		vars []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT current_phase, current_step, variables, updated_at
		FROM restbook_checkpoints
		WHERE content_hash = $1`,
		hash,
	).Scan(&data.CurrentPhase, &data.CurrentStep, &vars, &data.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if err := json.Unmarshal(vars, &data.Variables); err != nil {
		return nil, fmt.Errorf("parse checkpoint variables: %w", err)
	}
	data.ContentHash = hash
	return &data, nil
}

// Clear удаляет точку.
func (s *PostgresStore) Clear(ctx context.Context, hash string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM restbook_checkpoints WHERE content_hash = $1`, hash); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
