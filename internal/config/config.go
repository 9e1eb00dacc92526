package config

import "time"

// Method — HTTP-метод запроса.
type Method string

// Допустимые HTTP-методы.
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
	MethodHead   Method = "HEAD"
)

// OnError — политика обработки ошибок шага.
type OnError string

// Политики обработки ошибок.
const (
	// OnErrorAbort — ошибка шага прерывает фазу (и, для последовательных
	// фаз, весь playbook).
	OnErrorAbort OnError = "abort"

	// OnErrorIgnore — ошибка логируется и проглатывается, выполнение
	// продолжается со следующего шага.
	OnErrorIgnore OnError = "ignore"
)

// AuthType — тип аутентификации сессии.
type AuthType string

// Поддерживаемые типы аутентификации.
const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
	AuthOAuth2 AuthType = "oauth2"
)

// PlaybookConfig — корневая конфигурация playbook.
//
// После загрузки конфигурация неизменяема: движок рендерит копии
// отдельных секций непосредственно перед использованием.
type PlaybookConfig struct {
	// Sessions — временные сессии уровня playbook.
	// Имеют приоритет над сессиями из постоянного хранилища.
	Sessions map[string]SessionConfig `yaml:"sessions,omitempty" json:"sessions,omitempty"`

	// Phases — упорядоченный список фаз.
	Phases []PhaseConfig `yaml:"phases" json:"phases"`

	// Incremental — настройки checkpoint/resume.
	Incremental *IncrementalConfig `yaml:"incremental,omitempty" json:"incremental,omitempty"`

	// Metrics — настройки сбора метрик.
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Events — настройки публикации событий выполнения в AMQP.
	Events *EventsConfig `yaml:"events,omitempty" json:"events,omitempty"`

	// ShutdownTimeoutSec — grace period для graceful shutdown в секундах.
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec,omitempty" json:"shutdown_timeout_sec,omitempty"`
}

// ShutdownTimeout возвращает grace period как time.Duration.
func (c *PlaybookConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// SessionConfig — конфигурация сессии (базовый URL + аутентификация +
// настройки по умолчанию для запросов через эту сессию).
type SessionConfig struct {
	// BaseURL — базовый URL API. Поддерживает шаблоны.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Auth — настройки аутентификации.
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// Retry — политика повторов по умолчанию для запросов через сессию.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// ValidateSSL — проверять ли SSL-сертификаты. Default: true.
	ValidateSSL *bool `yaml:"validate_ssl,omitempty" json:"validate_ssl,omitempty"`

	// TimeoutSec — таймаут запросов в секундах. Default: 10.
	TimeoutSec int `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
}

// AuthConfig — настройки аутентификации сессии.
type AuthConfig struct {
	// Type — тип аутентификации: none, bearer, basic, api_key, oauth2.
	Type AuthType `yaml:"type" json:"type"`

	// Credentials — учётные данные. Состав зависит от типа:
	//   bearer:  token
	//   basic:   username, password
	//   api_key: header, key
	//   oauth2:  client_id, client_secret, token_url [, scope]
	// Значения поддерживают шаблоны.
	Credentials map[string]string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

// PhaseConfig — фаза playbook: именованная группа шагов.
type PhaseConfig struct {
	// Name — уникальное имя фазы. Используется как координата checkpoint.
	Name string `yaml:"name" json:"name"`

	// Parallel — выполнять ли шаги фазы параллельно.
	Parallel bool `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	// Steps — упорядоченный список шагов.
	Steps []StepConfig `yaml:"steps" json:"steps"`
}

// StepConfig — один HTTP-шаг фазы.
type StepConfig struct {
	// Session — имя сессии для выполнения запроса.
	Session string `yaml:"session" json:"session"`

	// Iterate — выражение итерации вида "item in collection".
	// collection должна существовать в переменных как список или map.
	Iterate string `yaml:"iterate,omitempty" json:"iterate,omitempty"`

	// Parallel — выполнять ли итерации параллельно.
	// Применяется только вместе с Iterate.
	Parallel bool `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	// Request — конфигурация HTTP-запроса.
	Request RequestConfig `yaml:"request" json:"request"`

	// Store — правила сохранения данных ответа в переменные.
	Store []StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Retry — политика повторов. Переопределяет политику сессии.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// RetryOn404 — считать ли 404 повторяемой ошибкой.
	RetryOn404 bool `yaml:"retry_on_404,omitempty" json:"retry_on_404,omitempty"`

	// OnError — политика обработки ошибок: ignore или abort. Default: abort.
	OnError OnError `yaml:"on_error,omitempty" json:"on_error,omitempty"`

	// TimeoutSec — таймаут запроса. Переопределяет таймаут сессии.
	TimeoutSec int `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`

	// ValidateSSL — переопределяет настройку сессии.
	ValidateSSL *bool `yaml:"validate_ssl,omitempty" json:"validate_ssl,omitempty"`
}

// RequestConfig — конфигурация HTTP-запроса.
// Все строковые поля поддерживают шаблоны.
type RequestConfig struct {
	// Method — HTTP-метод. Default: GET.
	Method Method `yaml:"method,omitempty" json:"method,omitempty"`

	// Endpoint — путь запроса относительно base_url сессии.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Data — inline тело запроса. Взаимоисключимо с FromFile.
	Data map[string]any `yaml:"data,omitempty" json:"data,omitempty"`

	// FromFile — путь к JSON-файлу с телом запроса.
	// Взаимоисключимо с Data.
	FromFile string `yaml:"from_file,omitempty" json:"from_file,omitempty"`

	// Params — query-параметры.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Headers — HTTP-заголовки.
	Headers map[string]any `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// StoreConfig — правило сохранения данных ответа в переменную.
type StoreConfig struct {
	// Var — имя целевой переменной. Поддерживает шаблоны.
	Var string `yaml:"var" json:"var"`

	// Query — выражение извлечения данных из тела ответа (gjson-путь).
	// Пустое значение — сохранить всё тело. Поддерживает шаблоны.
	Query string `yaml:"query,omitempty" json:"query,omitempty"`

	// Append — накапливать значения списком вместо замены.
	// Существующее скалярное значение продвигается до списка из одного
	// элемента при первом append.
	Append bool `yaml:"append,omitempty" json:"append,omitempty"`
}

// RetryConfig — политика повторов HTTP-запросов.
type RetryConfig struct {
	// MaxRetries — максимальное количество повторов (попыток будет
	// max_retries + 1).
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// BackoffFactor — множитель экспоненциальной задержки:
	// delay = backoff_factor * 2^attempt секунд.
	BackoffFactor float64 `yaml:"backoff_factor,omitempty" json:"backoff_factor,omitempty"`

	// MaxDelaySec — верхняя граница задержки между повторами в секундах.
	MaxDelaySec int `yaml:"max_delay_sec,omitempty" json:"max_delay_sec,omitempty"`

	// CircuitBreaker — настройки circuit breaker.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker,omitempty" json:"circuit_breaker,omitempty"`

	// RateLimit — настройки обработки rate limiting (429).
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// MaxDelay возвращает верхнюю границу задержки как time.Duration.
// Ноль означает отсутствие ограничения.
func (r *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySec) * time.Second
}

// CircuitBreakerConfig — настройки circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold — количество последовательных ошибок для открытия.
	Threshold int `yaml:"threshold" json:"threshold"`

	// ResetSec — время ожидания перед сбросом в секундах.
	ResetSec int `yaml:"reset_sec" json:"reset_sec"`

	// JitterSec — максимальная случайная добавка к времени сброса.
	JitterSec float64 `yaml:"jitter_sec,omitempty" json:"jitter_sec,omitempty"`
}

// RateLimitConfig — настройки обработки ответов 429.
type RateLimitConfig struct {
	// UseServerRetryDelay — использовать ли задержку, предложенную
	// сервером в заголовке. Default: true.
	UseServerRetryDelay *bool `yaml:"use_server_retry_delay,omitempty" json:"use_server_retry_delay,omitempty"`

	// RetryHeader — имя заголовка с задержкой. Default: Retry-After.
	RetryHeader string `yaml:"retry_header,omitempty" json:"retry_header,omitempty"`
}

// Типы хранилищ checkpoint.
const (
	CheckpointStoreFile     = "file"
	CheckpointStoreRemote   = "remote"
	CheckpointStorePostgres = "postgres"
)

// IncrementalConfig — настройки checkpoint/resume.
//
// Секция исключается из fingerprint playbook: её изменение
// не инвалидирует существующие checkpoint'ы.
type IncrementalConfig struct {
	// Enabled — включено ли инкрементальное выполнение.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Store — тип хранилища: file, remote, postgres. Default: file.
	Store string `yaml:"store,omitempty" json:"store,omitempty"`

	// FilePath — каталог для checkpoint-файлов (store: file).
	FilePath string `yaml:"file_path,omitempty" json:"file_path,omitempty"`

	// Session — имя сессии для удалённого хранилища (store: remote).
	Session string `yaml:"session,omitempty" json:"session,omitempty"`

	// Endpoint — базовый endpoint удалённого хранилища (store: remote).
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// DSN — строка подключения PostgreSQL (store: postgres).
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// Типы коллекторов метрик.
const (
	MetricsCollectorConsole    = "console"
	MetricsCollectorJSON       = "json"
	MetricsCollectorPrometheus = "prometheus"
)

// MetricsConfig — настройки сбора метрик выполнения.
type MetricsConfig struct {
	// Enabled — включён ли сбор метрик.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Collector — тип коллектора: console, json, prometheus.
	Collector string `yaml:"collector,omitempty" json:"collector,omitempty"`

	// OutputFile — путь выходного файла (collector: json).
	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty"`

	// PushGateway — URL Prometheus push gateway (collector: prometheus).
	PushGateway string `yaml:"push_gateway,omitempty" json:"push_gateway,omitempty"`

	// JobName — имя job для push gateway (collector: prometheus).
	JobName string `yaml:"job_name,omitempty" json:"job_name,omitempty"`
}

// EventsConfig — настройки публикации событий выполнения в RabbitMQ.
type EventsConfig struct {
	// Enabled — включена ли публикация событий.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// URL — AMQP URL брокера.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Exchange — имя exchange. Default: restbook.events.
	Exchange string `yaml:"exchange,omitempty" json:"exchange,omitempty"`
}
