package request

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// defaultTimeout — таймаут запроса по умолчанию.
	defaultTimeout = 10 * time.Second

	// maxResponseBody — ограничение на размер читаемого тела ответа.
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Статусы, требующие повтора.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Статусы, указывающие на проблемы аутентификации.
var authStatuses = map[int]bool{
	http.StatusUnauthorized: true,
	http.StatusForbidden:    true,
}

// Session — контракт сессии, через которую выполняются запросы.
//
// Конкретные протоколы аутентификации (bearer, basic, oauth2, api key)
// скрыты за этим интерфейсом.
type Session interface {
	// BaseURL возвращает базовый URL API.
	BaseURL() string

	// Authenticate выполняет аутентификацию сессии.
	Authenticate(ctx context.Context) error

	// RefreshAuth обновляет аутентификацию, если протокол это поддерживает.
	RefreshAuth(ctx context.Context) error

	// AuthHeaders возвращает заголовки аутентификации.
	AuthHeaders() (map[string]string, error)

	// IsAuthenticated сообщает, аутентифицирована ли сессия.
	IsAuthenticated() bool
}

// Config — конфигурация Client.
type Config struct {
	// Timeout — таймаут одного HTTP-запроса.
	Timeout time.Duration

	// ValidateSSL — проверять ли SSL-сертификаты.
	ValidateSSL bool

	// MaxRetries — максимальное количество повторов
	// (попыток будет MaxRetries + 1).
	MaxRetries int

	// BackoffFactor — множитель экспоненциальной задержки:
	// delay = BackoffFactor * 2^attempt секунд.
	BackoffFactor float64

	// MaxDelay — верхняя граница задержки между повторами.
	// Ноль — без ограничения.
	MaxDelay time.Duration

	// UseServerRetryDelay — использовать ли задержку из заголовка
	// ответа при rate limiting.
	UseServerRetryDelay bool

	// RetryHeader — имя заголовка с задержкой сервера.
	RetryHeader string

	// RetryOn404 — считать ли 404 повторяемой ошибкой.
	RetryOn404 bool
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Timeout:             defaultTimeout,
		ValidateSSL:         true,
		MaxRetries:          1,
		BackoffFactor:       0,
		UseServerRetryDelay: true,
		RetryHeader:         "Retry-After",
	}
}

// Spec — один логический HTTP-запрос.
type Spec struct {
	// Method — HTTP-метод.
	Method string

	// Endpoint — путь относительно base URL сессии.
	Endpoint string

	// Headers — дополнительные заголовки (поверх заголовков сессии).
	Headers map[string]string

	// Params — query-параметры.
	Params map[string]string

	// Body — тело запроса. Сериализуется в JSON, если не nil.
	Body any
}

// Response — ответ сервера с полностью прочитанным телом.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON разбирает тело ответа как JSON.
func (r *Response) JSON() (any, error) {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, fmt.Errorf("parse response body: %w", err)
	}
	return v, nil
}

// CallStats — метаданные текущего вызова Execute.
// История предыдущих вызовов не сохраняется.
type CallStats struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	StatusCode    int
	Attempts      int
	RetryCount    int
	Errors        []string
	RequestBytes  int
	ResponseBytes int
	Success       bool
}

// outcome — исход одной попытки запроса.
//
// Цикл повторов переключается по исходу; типизированные ошибки
// зарезервированы для терминальных ситуаций.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeRateLimited
	outcomeAuthFailed
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeAuthFailed:
		return "auth_failed"
	case outcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Client выполняет один логический запрос с повторами, экспоненциальной
// задержкой, обработкой rate limiting и refresh аутентификации на 401.
//
// Создаётся на одно выполнение шага; не потокобезопасен.
type Client struct {
	session Session
	cfg     Config
	breaker *CircuitBreaker
	http    *http.Client
	logger  *slog.Logger

	stats CallStats

	// sleep и now подменяются в тестах.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient создаёт Client. breaker может быть nil.
func NewClient(session Session, cfg Config, logger *slog.Logger, breaker *CircuitBreaker) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryHeader == "" {
		cfg.RetryHeader = "Retry-After"
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.ValidateSSL,
		},
	}

	return &Client{
		session: session,
		cfg:     cfg,
		breaker: breaker,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

// Stats возвращает метаданные последнего вызова Execute.
func (c *Client) Stats() CallStats {
	return c.stats
}

// Close освобождает соединения клиента.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Execute выполняет запрос с повторами.
//
// Возвращает ответ сервера или одну из терминальных ошибок:
// ErrAuthentication, ErrRetryExceeded, ErrSSLVerification, ErrUnknown.
// Непереповторенный 404 — успех: ответ возвращается как есть.
func (c *Client) Execute(ctx context.Context, spec *Spec) (*Response, error) {
	c.stats = CallStats{StartedAt: c.now()}
	defer func() {
		c.stats.FinishedAt = c.now()
	}()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		c.stats.Attempts = attempt + 1
		c.stats.RetryCount = attempt

		// Открытый breaker — принудительное ожидание, не отказ
		if c.breaker != nil && c.breaker.IsOpen() {
			delay := c.breaker.ResetDelay()
			c.logger.Warn("circuit breaker is open, waiting before next attempt",
				"delay", delay,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
			}
		}

		resp, out, attemptErr := c.attempt(ctx, spec)

		switch out {
		case outcomeSuccess:
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			c.stats.Success = true
			return resp, nil

		case outcomeRateLimited:
			// Rate limiting никогда не учитывается как ошибка breaker
			if attempt < c.cfg.MaxRetries {
				delay := c.rateLimitDelay(resp, attempt)
				c.logger.Warn("rate limited, waiting before retry",
					"delay", delay,
					"attempt", attempt+1,
				)
				if err := c.sleep(ctx, delay); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
				}
				continue
			}
			return nil, fmt.Errorf("%w: rate limited after %d attempts", ErrRetryExceeded, c.stats.Attempts)

		case outcomeAuthFailed:
			if attempt < c.cfg.MaxRetries && c.recoverAuth(ctx) {
				continue
			}
			return nil, fmt.Errorf("%w: status %d", ErrAuthentication, c.stats.StatusCode)

		case outcomeRetryable:
			if c.breaker != nil {
				c.breaker.RecordFailure()
			}
			if attempt < c.cfg.MaxRetries {
				delay := c.backoff(attempt)
				c.logger.Warn("retryable failure, backing off",
					"delay", delay,
					"attempt", attempt+1,
					"status", c.stats.StatusCode,
				)
				if err := c.sleep(ctx, delay); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
				}
				continue
			}
			if attemptErr != nil {
				return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExceeded, c.stats.Attempts, attemptErr)
			}
			return nil, fmt.Errorf("%w after %d attempts: status %d", ErrRetryExceeded, c.stats.Attempts, c.stats.StatusCode)

		case outcomeFatal:
			return nil, attemptErr
		}
	}

	return nil, ErrUnknown
}

// attempt выполняет одну попытку запроса и классифицирует исход.
func (c *Client) attempt(ctx context.Context, spec *Spec) (*Response, outcome, error) {
	// Сессия должна быть аутентифицирована до отправки
	if !c.session.IsAuthenticated() {
		if err := c.session.Authenticate(ctx); err != nil {
			c.recordError(err)
			return nil, outcomeFatal, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}

	req, err := c.buildRequest(ctx, spec)
	if err != nil {
		c.recordError(err)
		return nil, outcomeFatal, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.recordError(err)
		out, cerr := c.classifyTransportError(ctx, err)
		return nil, out, cerr
	}

	// Тело читается полностью, соединение освобождается всегда
	body, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	httpResp.Body.Close()
	if readErr != nil {
		c.recordError(readErr)
		return nil, outcomeRetryable, fmt.Errorf("read response body: %w", readErr)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}
	c.stats.StatusCode = resp.StatusCode
	c.stats.ResponseBytes = len(body)

	return resp, c.classifyStatus(resp.StatusCode), nil
}

// classifyStatus определяет исход по коду ответа.
func (c *Client) classifyStatus(status int) outcome {
	switch {
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case authStatuses[status]:
		return outcomeAuthFailed
	case retryStatuses[status]:
		return outcomeRetryable
	case status == http.StatusNotFound && c.cfg.RetryOn404:
		return outcomeRetryable
	default:
		// 404 без retry_on_404 возвращается как есть
		return outcomeSuccess
	}
}

// classifyTransportError определяет исход ошибки уровня соединения.
func (c *Client) classifyTransportError(ctx context.Context, err error) (outcome, error) {
	if ctx.Err() != nil {
		return outcomeFatal, fmt.Errorf("%w: %v", ErrUnknown, ctx.Err())
	}

	// SSL-ошибки — проблема конфигурации, повтор бессмысленен
	if isSSLError(err) {
		c.logger.Error("SSL error, check certificate configuration or set validate_ssl to false",
			"error", err,
		)
		return outcomeFatal, fmt.Errorf("%w: %v", ErrSSLVerification, err)
	}

	c.logger.Warn("connection error", "error", err)
	return outcomeRetryable, err
}

// buildRequest собирает http.Request из Spec и сессии.
func (c *Client) buildRequest(ctx context.Context, spec *Spec) (*http.Request, error) {
	base := strings.TrimRight(c.session.BaseURL(), "/")
	endpoint := strings.TrimLeft(spec.Endpoint, "/")
	fullURL := base + "/" + endpoint

	if len(spec.Params) > 0 {
		query := url.Values{}
		for k, v := range spec.Params {
			query.Set(k, v)
		}
		if strings.Contains(fullURL, "?") {
			fullURL += "&" + query.Encode()
		} else {
			fullURL += "?" + query.Encode()
		}
	}

	var bodyReader io.Reader
	if spec.Body != nil {
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
		c.stats.RequestBytes = len(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, fullURL, bodyReader)
	if err != nil {
		return nil, err
	}

	// Заголовки аутентификации берутся заново на каждую попытку:
	// после refresh они могли измениться
	authHeaders, err := c.session.AuthHeaders()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	for k, v := range authHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// recoverAuth пробует refresh, затем повторную аутентификацию.
// Возвращает true, если попытку можно повторить.
func (c *Client) recoverAuth(ctx context.Context) bool {
	if err := c.session.RefreshAuth(ctx); err == nil {
		return true
	}
	if err := c.session.Authenticate(ctx); err == nil {
		return true
	}
	c.logger.Error("both auth refresh and re-authentication failed")
	return false
}

// backoff вычисляет экспоненциальную задержку для попытки.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BackoffFactor * math.Pow(2, float64(attempt))
	d := time.Duration(delay * float64(time.Second))
	if c.cfg.MaxDelay > 0 && d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	return d
}

// rateLimitDelay возвращает задержку после 429: задержка сервера
// из заголовка, если разрешена и валидна, иначе экспоненциальный backoff.
func (c *Client) rateLimitDelay(resp *Response, attempt int) time.Duration {
	if resp == nil || !c.cfg.UseServerRetryDelay {
		return c.backoff(attempt)
	}

	value := resp.Headers.Get(c.cfg.RetryHeader)
	if value == "" {
		return c.backoff(attempt)
	}

	// Числовое значение — секунды
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds) * time.Second
	}

	// Иначе HTTP-дата
	if when, err := http.ParseTime(value); err == nil {
		delay := when.Sub(c.now())
		if delay < 0 {
			delay = 0
		}
		return delay
	}

	c.logger.Warn("invalid retry delay header value", "header", c.cfg.RetryHeader, "value", value)
	return c.backoff(attempt)
}

// recordError добавляет ошибку в метаданные вызова.
func (c *Client) recordError(err error) {
	c.stats.Errors = append(c.stats.Errors, err.Error())
}

// isSSLError проверяет, является ли ошибка ошибкой проверки SSL.
func isSSLError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}

// sleepCtx ждёт d или отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
