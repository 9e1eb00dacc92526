package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/shalev007/restbook/internal/config"
)

var (
	// ErrMissingCredential — в credentials нет обязательного поля.
	ErrMissingCredential = errors.New("missing auth credential")

	// ErrRefreshUnsupported — протокол не поддерживает refresh.
	ErrRefreshUnsupported = errors.New("auth refresh is not supported")
)

// Authenticator — протокол аутентификации сессии.
type Authenticator interface {
	// Authenticate выполняет аутентификацию.
	Authenticate(ctx context.Context) error

	// Refresh обновляет аутентификацию. Возвращает
	// ErrRefreshUnsupported, если протокол статический.
	Refresh(ctx context.Context) error

	// Headers возвращает заголовки аутентификации.
	Headers() (map[string]string, error)

	// IsAuthenticated сообщает, готова ли аутентификация.
	IsAuthenticated() bool
}

// NewAuthenticator создаёт аутентификатор по конфигурации.
// nil-конфигурация означает отсутствие аутентификации.
func NewAuthenticator(cfg *config.AuthConfig) (Authenticator, error) {
	if cfg == nil {
		return noneAuth{}, nil
	}

	switch cfg.Type {
	case "", config.AuthNone:
		return noneAuth{}, nil
	case config.AuthBearer:
		return newBearerAuth(cfg.Credentials)
	case config.AuthBasic:
		return newBasicAuth(cfg.Credentials)
	case config.AuthAPIKey:
		return newAPIKeyAuth(cfg.Credentials)
	case config.AuthOAuth2:
		return newOAuth2Auth(cfg.Credentials)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownAuthType, cfg.Type)
	}
}

// noneAuth — сессия без аутентификации.
type noneAuth struct{}

func (noneAuth) Authenticate(context.Context) error { return nil }
func (noneAuth) Refresh(context.Context) error      { return ErrRefreshUnsupported }
func (noneAuth) Headers() (map[string]string, error) {
	return map[string]string{}, nil
}
func (noneAuth) IsAuthenticated() bool { return true }

// bearerAuth — статический bearer-токен.
type bearerAuth struct {
	token string
}

func newBearerAuth(creds map[string]string) (*bearerAuth, error) {
	token := creds["token"]
	if token == "" {
		return nil, fmt.Errorf("%w: bearer auth requires token", ErrMissingCredential)
	}
	return &bearerAuth{token: token}, nil
}

func (a *bearerAuth) Authenticate(context.Context) error { return nil }
func (a *bearerAuth) Refresh(context.Context) error      { return ErrRefreshUnsupported }
func (a *bearerAuth) Headers() (map[string]string, error) {
	return map[string]string{"Authorization": "Bearer " + a.token}, nil
}
func (a *bearerAuth) IsAuthenticated() bool { return true }

// basicAuth — HTTP basic.
type basicAuth struct {
	username string
	password string
}

func newBasicAuth(creds map[string]string) (*basicAuth, error) {
	if creds["username"] == "" || creds["password"] == "" {
		return nil, fmt.Errorf("%w: basic auth requires username and password", ErrMissingCredential)
	}
	return &basicAuth{username: creds["username"], password: creds["password"]}, nil
}

func (a *basicAuth) Authenticate(context.Context) error { return nil }
func (a *basicAuth) Refresh(context.Context) error      { return ErrRefreshUnsupported }
func (a *basicAuth) Headers() (map[string]string, error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.password))
	return map[string]string{"Authorization": "Basic " + encoded}, nil
}
func (a *basicAuth) IsAuthenticated() bool { return true }

// apiKeyAuth — API-ключ в произвольном заголовке.
type apiKeyAuth struct {
	header string
	key    string
}

func newAPIKeyAuth(creds map[string]string) (*apiKeyAuth, error) {
	key := creds["key"]
	if key == "" {
		return nil, fmt.Errorf("%w: api_key auth requires key", ErrMissingCredential)
	}
	header := creds["header"]
	if header == "" {
		header = "X-API-Key"
	}
	return &apiKeyAuth{header: header, key: key}, nil
}

func (a *apiKeyAuth) Authenticate(context.Context) error { return nil }
func (a *apiKeyAuth) Refresh(context.Context) error      { return ErrRefreshUnsupported }
func (a *apiKeyAuth) Headers() (map[string]string, error) {
	return map[string]string{a.header: a.key}, nil
}
func (a *apiKeyAuth) IsAuthenticated() bool { return true }
