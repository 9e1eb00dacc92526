package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable — хранилище контрольных точек недоступно.
var ErrStoreUnavailable = errors.New("checkpoint store unavailable")

// Data — контрольная точка выполнения плейбука.
//
// Точка пишется после завершения шага и позволяет возобновить
// выполнение с места сбоя.
type Data struct {
	// CurrentPhase — индекс последней завершённой фазы.
	CurrentPhase int `json:"current_phase"`

	// CurrentStep — индекс последнего завершённого шага в фазе.
	CurrentStep int `json:"current_step"`

	// Variables — снимок переменных на момент записи.
	Variables map[string]any `json:"variables"`

	// ContentHash — отпечаток конфигурации плейбука.
	ContentHash string `json:"content_hash"`

	// Timestamp — время записи точки.
	Timestamp time.Time `json:"timestamp"`
}

// Store — хранилище контрольных точек.
//
// Точки адресуются отпечатком конфигурации: у каждого плейбука
// не больше одной актуальной точки.
type Store interface {
	// Save записывает точку.
	Save(ctx context.Context, hash string, data *Data) error

	// Load возвращает точку или (nil, nil), если её нет.
	Load(ctx context.Context, hash string) (*Data, error)

	// Clear удаляет точку. Отсутствие точки — не ошибка.
	Clear(ctx context.Context, hash string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}
