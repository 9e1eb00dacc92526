package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/shalev007/restbook/internal/config"
)

// ErrNotFound — сессия с таким именем не зарегистрирована.
var ErrNotFound = errors.New("session not found")

// Session — именованная привязка к API: base URL плюс аутентификация.
// Реализует request.Session.
type Session struct {
	name    string
	baseURL string
	auth    Authenticator
	cfg     config.SessionConfig
}

// FromConfig создаёт сессию из конфигурации.
func FromConfig(name string, cfg config.SessionConfig) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("session %s: base_url is required", name)
	}
	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", name, err)
	}
	return &Session{
		name:    name,
		baseURL: cfg.BaseURL,
		auth:    auth,
		cfg:     cfg,
	}, nil
}

// Name возвращает имя сессии.
func (s *Session) Name() string { return s.name }

// BaseURL возвращает базовый URL API.
func (s *Session) BaseURL() string { return s.baseURL }

// Config возвращает исходную конфигурацию сессии.
func (s *Session) Config() config.SessionConfig { return s.cfg }

// Authenticate выполняет аутентификацию сессии.
func (s *Session) Authenticate(ctx context.Context) error {
	return s.auth.Authenticate(ctx)
}

// RefreshAuth обновляет аутентификацию сессии.
func (s *Session) RefreshAuth(ctx context.Context) error {
	return s.auth.Refresh(ctx)
}

// AuthHeaders возвращает заголовки аутентификации.
func (s *Session) AuthHeaders() (map[string]string, error) {
	return s.auth.Headers()
}

// IsAuthenticated сообщает, аутентифицирована ли сессия.
func (s *Session) IsAuthenticated() bool {
	return s.auth.IsAuthenticated()
}
