package config

import "errors"

// Ошибки валидации playbook.
var (
	// ErrEmptyPhases — playbook не содержит фаз.
	ErrEmptyPhases = errors.New("playbook has no phases")

	// ErrEmptyPhaseName — фаза не имеет имени.
	ErrEmptyPhaseName = errors.New("phase has empty name")

	// ErrDuplicatePhaseName — несколько фаз с одинаковым именем.
	ErrDuplicatePhaseName = errors.New("duplicate phase name")

	// ErrEmptySteps — фаза не содержит шагов.
	ErrEmptySteps = errors.New("phase has no steps")

	// ErrEmptySession — шаг не указывает сессию.
	ErrEmptySession = errors.New("step has empty session")

	// ErrEmptyEndpoint — запрос не указывает endpoint.
	ErrEmptyEndpoint = errors.New("request has empty endpoint")

	// ErrUnknownMethod — неизвестный HTTP-метод.
	ErrUnknownMethod = errors.New("unknown HTTP method")

	// ErrUnknownOnError — неизвестная политика on_error.
	ErrUnknownOnError = errors.New("unknown on_error policy")

	// ErrDataAndFromFile — data и from_file заданы одновременно.
	ErrDataAndFromFile = errors.New("data and from_file are mutually exclusive")

	// ErrEmptyStoreVar — store-правило не указывает переменную.
	ErrEmptyStoreVar = errors.New("store rule has empty var")

	// ErrBadIterate — невалидное выражение итерации.
	ErrBadIterate = errors.New("iterate expression must be \"item in collection\"")

	// ErrNegativeRetries — отрицательное значение max_retries.
	ErrNegativeRetries = errors.New("max_retries must not be negative")

	// ErrBreakerThreshold — порог circuit breaker превышает max_retries.
	ErrBreakerThreshold = errors.New("circuit_breaker requires max_retries >= threshold")

	// ErrUnknownCheckpointStore — неизвестный тип хранилища checkpoint.
	ErrUnknownCheckpointStore = errors.New("unknown checkpoint store type")

	// ErrIncompleteCheckpointStore — хранилищу checkpoint не хватает настроек.
	ErrIncompleteCheckpointStore = errors.New("checkpoint store config is incomplete")

	// ErrUnknownMetricsCollector — неизвестный тип коллектора метрик.
	ErrUnknownMetricsCollector = errors.New("unknown metrics collector type")

	// ErrUnknownAuthType — неизвестный тип аутентификации.
	ErrUnknownAuthType = errors.New("unknown auth type")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Phase   string // имя фазы, где произошла ошибка
	Step    int    // индекс шага (-1, если ошибка уровня фазы/playbook)
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Phase != "" {
		return "phase " + e.Phase + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(phase string, step int, field, message string, err error) *ValidationError {
	return &ValidationError{
		Phase:   phase,
		Step:    step,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
