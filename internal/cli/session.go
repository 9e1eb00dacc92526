package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/session"
)

// NewSessionCmd создаёт группу команд управления именованными сессиями.
func NewSessionCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage named sessions",
	}

	cmd.AddCommand(
		newSessionCreateCmd(deps),
		newSessionListCmd(deps),
		newSessionShowCmd(deps),
		newSessionDeleteCmd(deps),
		newSessionImportCmd(deps),
	)

	return cmd
}

func newSessionCreateCmd(deps Deps) *cobra.Command {
	var (
		baseURL     string
		authType    string
		credentials []string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create or update a named session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg := config.SessionConfig{BaseURL: baseURL}
			if authType != "" {
				creds, err := parseCredentials(credentials)
				if err != nil {
					return err
				}
				cfg.Auth = &config.AuthConfig{
					Type:        config.AuthType(authType),
					Credentials: creds,
				}
			}

			// Валидация через построение сессии
			if _, err := session.FromConfig(name, cfg); err != nil {
				return err
			}

			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}
			if err := store.Upsert(name, cfg); err != nil {
				return err
			}

			deps.Output().Successf("Session saved: %s", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (required)")
	cmd.Flags().StringVar(&authType, "auth-type", "", "Auth type: none, bearer, basic, api_key, oauth2")
	cmd.Flags().StringArrayVar(&credentials, "credential", nil, "Auth credential as key=value (repeatable)")
	cmd.MarkFlagRequired("base-url")

	return cmd
}

func newSessionListCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List named sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}
			out := deps.Output()

			names := store.List()
			rows := make([][]string, 0, len(names))
			summaries := make([]map[string]string, 0, len(names))
			for _, name := range names {
				cfg, err := store.Get(name)
				if err != nil {
					return err
				}
				authType := string(config.AuthNone)
				if cfg.Auth != nil {
					authType = string(cfg.Auth.Type)
				}
				rows = append(rows, []string{name, cfg.BaseURL, authType})
				summaries = append(summaries, map[string]string{
					"name":     name,
					"base_url": cfg.BaseURL,
					"auth":     authType,
				})
			}

			return out.Render(Table{
				Header: []string{"NAME", "BASE URL", "AUTH"},
				Rows:   rows,
			}, summaries)
		},
	}
}

func newSessionShowCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a named session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}

			cfg, err := store.Get(args[0])
			if err != nil {
				return err
			}

			// Учётные данные не выводятся
			shown := cfg
			if cfg.Auth != nil {
				auth := *cfg.Auth
				auth.Credentials = redactCredentials(cfg.Auth.Credentials)
				shown.Auth = &auth
			}

			return deps.Output().JSON(shown)
		},
	}
}

func newSessionDeleteCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a named session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			deps.Output().Successf("Session deleted: %s", args[0])
			return nil
		},
	}
}

func newSessionImportCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "import NAME OPENAPI_FILE",
		Short: "Create a session skeleton from an OpenAPI document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]

			cfg, err := session.ImportOpenAPI(path)
			if err != nil {
				return err
			}

			store, err := session.NewStore(deps.StorePath())
			if err != nil {
				return err
			}
			if err := store.Upsert(name, cfg); err != nil {
				return err
			}

			out := deps.Output()
			out.Successf("Session imported: %s (fill in credentials before use)", name)
			return out.JSON(cfg)
		},
	}
}

// parseCredentials разбирает флаги вида key=value.
func parseCredentials(pairs []string) (map[string]string, error) {
	creds := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid credential %q, expected key=value", pair)
		}
		creds[key] = value
	}
	return creds, nil
}

// redactCredentials заменяет значения учётных данных заглушкой.
func redactCredentials(creds map[string]string) map[string]string {
	redacted := make(map[string]string, len(creds))
	for k := range creds {
		redacted[k] = "***"
	}
	return redacted
}
