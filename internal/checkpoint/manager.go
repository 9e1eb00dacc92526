package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shalev007/restbook/internal/config"
)

// Manager связывает хранилище с конкретным плейбуком: вычисляет
// отпечаток конфигурации, пишет и читает точки, решает, какие фазы
// и шаги пропускать при возобновлении.
type Manager struct {
	store   Store
	hash    string
	enabled bool
	logger  *slog.Logger
}

// NewManager создаёт менеджер для конфигурации cfg.
// store может быть nil, если контрольные точки выключены.
func NewManager(cfg *config.PlaybookConfig, store Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hash, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	enabled := cfg.Incremental != nil && cfg.Incremental.Enabled && store != nil
	return &Manager{
		store:   store,
		hash:    hash,
		enabled: enabled,
		logger:  logger,
	}, nil
}

// Enabled сообщает, включены ли контрольные точки.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Hash возвращает отпечаток конфигурации плейбука.
func (m *Manager) Hash() string {
	return m.hash
}

// Save пишет точку после завершения шага (phase, step).
//
// Ошибки записи логируются и не прерывают выполнение: потеря точки
// лишь означает лишнюю работу при повторном запуске. Точка (0, 0)
// не пишется: возобновление с неё эквивалентно запуску с нуля.
func (m *Manager) Save(ctx context.Context, phase, step int, variables map[string]any) {
	if !m.enabled {
		return
	}
	if phase == 0 && step == 0 {
		return
	}

	data := &Data{
		CurrentPhase: phase,
		CurrentStep:  step,
		Variables:    variables,
		ContentHash:  m.hash,
		Timestamp:    time.Now().UTC(),
	}
	if err := m.store.Save(ctx, m.hash, data); err != nil {
		m.logger.Warn("failed to save checkpoint, execution continues",
			"phase", phase,
			"step", step,
			"error", err,
		)
		return
	}
	m.logger.Debug("checkpoint saved", "phase", phase, "step", step)
}

// Load возвращает точку для текущей конфигурации или nil, если её нет,
// она повреждена или принадлежит другой версии плейбука.
func (m *Manager) Load(ctx context.Context) *Data {
	if !m.enabled {
		return nil
	}

	data, err := m.store.Load(ctx, m.hash)
	if err != nil {
		m.logger.Warn("failed to load checkpoint, starting from scratch", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	if data.ContentHash != "" && data.ContentHash != m.hash {
		m.logger.Info("playbook changed since last checkpoint, starting from scratch")
		return nil
	}
	return data
}

// Clear удаляет точку после успешного выполнения.
func (m *Manager) Clear(ctx context.Context) {
	if !m.enabled {
		return
	}
	if err := m.store.Clear(ctx, m.hash); err != nil {
		m.logger.Warn("failed to clear checkpoint", "error", err)
	}
}

// Fingerprint возвращает sha256-отпечаток конфигурации плейбука.
//
// Секция incremental исключается из отпечатка: смена хранилища точек
// не должна обесценивать уже записанную точку.
func Fingerprint(cfg *config.PlaybookConfig) (string, error) {
	clean := *cfg
	clean.Incremental = nil

	payload, err := json.Marshal(&clean)
	if err != nil {
		return "", fmt.Errorf("fingerprint playbook: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// ShouldSkipPhase сообщает, завершена ли фаза по данным точки.
func ShouldSkipPhase(cp *Data, phase int) bool {
	return cp != nil && phase < cp.CurrentPhase
}

// ShouldSkipStep сообщает, завершён ли шаг по данным точки.
func ShouldSkipStep(cp *Data, phase, step int) bool {
	return cp != nil && phase == cp.CurrentPhase && step <= cp.CurrentStep
}

// ShouldRestartParallelPhase сообщает, нужно ли перезапустить
// параллельную фазу целиком. Частичное возобновление параллельной
// фазы невозможно: порядок завершения шагов недетерминирован.
func ShouldRestartParallelPhase(cp *Data, phase int) bool {
	return cp != nil && phase == cp.CurrentPhase
}
