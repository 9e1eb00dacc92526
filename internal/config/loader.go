package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load читает и валидирует playbook из YAML-файла.
func Load(path string) (*PlaybookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	return Parse(data)
}

// Parse разбирает и валидирует playbook из YAML-содержимого.
func Parse(data []byte) (*PlaybookConfig, error) {
	var cfg PlaybookConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults заполняет значения по умолчанию после разбора.
func applyDefaults(cfg *PlaybookConfig) {
	for pi := range cfg.Phases {
		phase := &cfg.Phases[pi]
		for si := range phase.Steps {
			step := &phase.Steps[si]
			if step.Request.Method == "" {
				step.Request.Method = MethodGet
			} else {
				step.Request.Method = Method(strings.ToUpper(string(step.Request.Method)))
			}
			if step.OnError == "" {
				step.OnError = OnErrorAbort
			}
		}
	}

	if cfg.Incremental != nil && cfg.Incremental.Store == "" {
		cfg.Incremental.Store = CheckpointStoreFile
	}
	if cfg.Metrics != nil && cfg.Metrics.Collector == "" {
		cfg.Metrics.Collector = MetricsCollectorConsole
	}
	if cfg.Events != nil && cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "restbook.events"
	}
}

// ParseIterate разбирает выражение итерации "item in collection".
// Возвращает имя переменной итерации и имя переменной-коллекции.
func ParseIterate(expr string) (item, collection string, err error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 || parts[1] != "in" || parts[0] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadIterate, expr)
	}
	return parts[0], parts[2], nil
}
