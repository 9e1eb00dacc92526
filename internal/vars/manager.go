package vars

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/shalev007/restbook/internal/config"
)

// ErrExtraction — запрос извлечения не дал результата.
var ErrExtraction = errors.New("response data extraction failed")

// ExtractionError — ошибка извлечения данных из тела ответа.
// Содержит тело ответа для диагностики.
type ExtractionError struct {
	Var   string // целевая переменная
	Query string // выражение извлечения
	Body  string // тело ответа
	Err   error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("store variable %q: query %q matched nothing", e.Var, e.Query)
}

// Unwrap возвращает базовую ошибку.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Manager — хранилище переменных playbook.
//
// Единственный канал передачи данных между фазами, шагами и итерациями.
// Потокобезопасен: записи из параллельных итераций сериализуются
// (last write wins).
type Manager struct {
	mu     sync.RWMutex
	values map[string]any
	logger *slog.Logger
}

// NewManager создаёт пустой Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		values: make(map[string]any),
		logger: logger,
	}
}

// Get возвращает значение переменной и признак её существования.
func (m *Manager) Get(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

// Set устанавливает значение переменной.
func (m *Manager) Set(name string, value any) {
	m.mu.Lock()
	m.values[name] = value
	m.mu.Unlock()
	m.logger.Debug("variable set", "name", name)
}

// Has проверяет существование переменной.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[name]
	return ok
}

// GetAll возвращает копию всех переменных.
func (m *Manager) GetAll() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]any, len(m.values))
	for k, v := range m.values {
		snapshot[k] = v
	}
	return snapshot
}

// SetAll заменяет все переменные. Используется при загрузке checkpoint.
func (m *Manager) SetAll(values map[string]any) {
	m.mu.Lock()
	m.values = make(map[string]any, len(values))
	for k, v := range values {
		m.values[k] = v
	}
	m.mu.Unlock()
	m.logger.Info("variables loaded", "count", len(values))
}

// Clear удаляет все переменные.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.values = make(map[string]any)
	m.mu.Unlock()
}

// StoreResponseData извлекает данные из тела ответа по store-правилам
// и сохраняет их в переменные.
//
// Правила должны быть уже отрендерены. Пустой query сохраняет всё тело.
// Ошибка извлечения возвращается вместе с телом ответа для диагностики;
// решение о прерывании остаётся за политикой on_error шага.
func (m *Manager) StoreResponseData(rules []config.StoreConfig, body []byte) error {
	if len(rules) == 0 {
		return nil
	}

	for _, rule := range rules {
		value, err := extract(rule.Query, body)
		if err != nil {
			m.logger.Error("failed to store variable",
				"name", rule.Var,
				"query", rule.Query,
				"error", err,
			)
			return &ExtractionError{
				Var:   rule.Var,
				Query: rule.Query,
				Body:  string(body),
				Err:   err,
			}
		}

		if rule.Append {
			m.appendValue(rule.Var, value)
		} else {
			m.Set(rule.Var, value)
		}
	}

	return nil
}

// extract выполняет запрос извлечения над телом ответа.
func extract(query string, body []byte) (any, error) {
	if !gjson.ValidBytes(body) {
		if query == "" {
			// Не-JSON тело без запроса сохраняем строкой
			return string(body), nil
		}
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrExtraction)
	}

	if query == "" {
		return gjson.ParseBytes(body).Value(), nil
	}

	result := gjson.GetBytes(body, query)
	if !result.Exists() {
		return nil, ErrExtraction
	}
	return result.Value(), nil
}

// appendValue добавляет значение к переменной-списку.
// Существующее скалярное значение продвигается до списка из одного
// элемента при первом append.
func (m *Manager) appendValue(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.values[name]
	if !ok {
		m.values[name] = []any{value}
		return
	}

	list, isList := existing.([]any)
	if !isList {
		list = []any{existing}
	}
	m.values[name] = append(list, value)
}

// MarshalJSON сериализует переменные для checkpoint.
func (m *Manager) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.GetAll())
}
