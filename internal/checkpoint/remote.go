package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shalev007/restbook/internal/request"
)

// RemoteStore хранит контрольные точки на удалённом HTTP-сервисе,
// используя аутентифицированную сессию плейбука.
//
// Точки адресуются как "{endpoint}/checkpoints/{hash}".
type RemoteStore struct {
	session  request.Session
	endpoint string
	logger   *slog.Logger
}

// NewRemoteStore создаёт удалённое хранилище поверх сессии.
func NewRemoteStore(session request.Session, endpoint string, logger *slog.Logger) *RemoteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteStore{
		session:  session,
		endpoint: strings.TrimRight(endpoint, "/"),
		logger:   logger,
	}
}

// Save пишет точку через PUT.
func (s *RemoteStore) Save(ctx context.Context, hash string, data *Data) error {
	resp, err := s.client().Execute(ctx, &request.Spec{
		Method:   http.MethodPut,
		Endpoint: s.path(hash),
		Body:     data,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: save returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}
	return nil
}

// Load читает точку через GET. Ответ 404 означает отсутствие точки.
func (s *RemoteStore) Load(ctx context.Context, hash string) (*Data, error) {
	resp, err := s.client().Execute(ctx, &request.Spec{
		Method:   http.MethodGet,
		Endpoint: s.path(hash),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: load returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	var data Data
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("parse remote checkpoint: %w", err)
	}
	return &data, nil
}

// Clear удаляет точку через DELETE. Ответ 404 — не ошибка.
func (s *RemoteStore) Clear(ctx context.Context, hash string) error {
	resp, err := s.client().Execute(ctx, &request.Spec{
		Method:   http.MethodDelete,
		Endpoint: s.path(hash),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: clear returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}
	return nil
}

// Close ничего не делает: сессией владеет вызывающая сторона.
func (s *RemoteStore) Close() error {
	return nil
}

func (s *RemoteStore) client() *request.Client {
	return request.NewClient(s.session, request.DefaultConfig(), s.logger, nil)
}

func (s *RemoteStore) path(hash string) string {
	return s.endpoint + "/checkpoints/" + hash
}
