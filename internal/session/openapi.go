package session

import (
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/shalev007/restbook/internal/config"
)

// ErrNoServers — в спецификации OpenAPI не объявлено ни одного сервера.
var ErrNoServers = errors.New("openapi document declares no servers")

// ImportOpenAPI строит заготовку конфигурации сессии из OpenAPI-документа:
// base URL берётся из первого сервера, тип аутентификации — из первой
// подходящей security-схемы. Учётные данные заполняет пользователь.
func ImportOpenAPI(path string) (config.SessionConfig, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return config.SessionConfig{}, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return config.SessionConfig{}, fmt.Errorf("validate openapi document: %w", err)
	}

	if len(doc.Servers) == 0 || doc.Servers[0].URL == "" {
		return config.SessionConfig{}, ErrNoServers
	}

	cfg := config.SessionConfig{BaseURL: doc.Servers[0].URL}

	if doc.Components != nil {
		if auth := authFromSecuritySchemes(doc.Components.SecuritySchemes); auth != nil {
			cfg.Auth = auth
		}
	}
	return cfg, nil
}

// authFromSecuritySchemes выбирает первую security-схему,
// выразимую типом аутентификации сессии.
func authFromSecuritySchemes(schemes openapi3.SecuritySchemes) *config.AuthConfig {
	for _, ref := range schemes {
		if ref == nil || ref.Value == nil {
			continue
		}
		scheme := ref.Value

		switch scheme.Type {
		case "http":
			switch scheme.Scheme {
			case "bearer":
				return &config.AuthConfig{Type: config.AuthBearer, Credentials: map[string]string{"token": ""}}
			case "basic":
				return &config.AuthConfig{Type: config.AuthBasic, Credentials: map[string]string{"username": "", "password": ""}}
			}
		case "apiKey":
			if scheme.In == "header" {
				return &config.AuthConfig{
					Type:        config.AuthAPIKey,
					Credentials: map[string]string{"header": scheme.Name, "key": ""},
				}
			}
		case "oauth2":
			creds := map[string]string{"client_id": "", "client_secret": "", "token_url": ""}
			if scheme.Flows != nil && scheme.Flows.ClientCredentials != nil {
				creds["token_url"] = scheme.Flows.ClientCredentials.TokenURL
			}
			return &config.AuthConfig{Type: config.AuthOAuth2, Credentials: creds}
		}
	}
	return nil
}
