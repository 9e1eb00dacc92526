package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// oauth2Auth — OAuth2 client credentials flow.
//
// Токен кэшируется до истечения; Refresh сбрасывает источник токенов
// и получает новый токен принудительно.
type oauth2Auth struct {
	cfg clientcredentials.Config

	mu     sync.Mutex
	source oauth2.TokenSource
	token  *oauth2.Token
}

func newOAuth2Auth(creds map[string]string) (*oauth2Auth, error) {
	clientID := creds["client_id"]
	clientSecret := creds["client_secret"]
	tokenURL := creds["token_url"]
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("%w: oauth2 auth requires client_id, client_secret and token_url", ErrMissingCredential)
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	if scopes := creds["scopes"]; scopes != "" {
		cfg.Scopes = strings.Fields(scopes)
	}

	return &oauth2Auth{cfg: cfg}, nil
}

func (a *oauth2Auth) Authenticate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.source == nil {
		a.source = a.cfg.TokenSource(ctx)
	}
	token, err := a.source.Token()
	if err != nil {
		return fmt.Errorf("obtain oauth2 token: %w", err)
	}
	a.token = token
	return nil
}

// Refresh сбрасывает источник токенов: client credentials flow не имеет
// refresh-токена, новый access token просто запрашивается заново.
func (a *oauth2Auth) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.source = a.cfg.TokenSource(ctx)
	a.token = nil
	a.mu.Unlock()

	return a.Authenticate(ctx)
}

func (a *oauth2Auth) Headers() (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		return nil, fmt.Errorf("oauth2 session is not authenticated")
	}
	return map[string]string{"Authorization": a.token.Type() + " " + a.token.AccessToken}, nil
}

func (a *oauth2Auth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != nil && a.token.Valid()
}
