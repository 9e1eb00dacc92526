package config

import "fmt"

// Допустимые HTTP-методы.
var validMethods = map[Method]bool{
	MethodGet:    true,
	MethodPost:   true,
	MethodPut:    true,
	MethodDelete: true,
	MethodPatch:  true,
	MethodHead:   true,
}

// Допустимые типы аутентификации.
var validAuthTypes = map[AuthType]bool{
	AuthNone:   true,
	AuthBearer: true,
	AuthBasic:  true,
	AuthAPIKey: true,
	AuthOAuth2: true,
}

// Validate выполняет полную валидацию playbook.
//
// Проверяет:
//   - Наличие фаз и шагов
//   - Уникальность имён фаз
//   - Корректность методов, on_error и iterate
//   - Взаимоисключимость data и from_file
//   - Согласованность circuit_breaker и max_retries
//   - Полноту настроек incremental и metrics
func Validate(cfg *PlaybookConfig) error {
	if cfg == nil || len(cfg.Phases) == 0 {
		return ErrEmptyPhases
	}

	phaseNames := make(map[string]bool, len(cfg.Phases))

	for pi := range cfg.Phases {
		phase := &cfg.Phases[pi]

		if phase.Name == "" {
			return NewValidationError("", -1, "name",
				fmt.Sprintf("phase %d has empty name", pi), ErrEmptyPhaseName)
		}
		if phaseNames[phase.Name] {
			return NewValidationError(phase.Name, -1, "name",
				fmt.Sprintf("duplicate phase name: %s", phase.Name), ErrDuplicatePhaseName)
		}
		phaseNames[phase.Name] = true

		if len(phase.Steps) == 0 {
			return NewValidationError(phase.Name, -1, "steps",
				"phase has no steps", ErrEmptySteps)
		}

		for si := range phase.Steps {
			if err := validateStep(phase.Name, si, &phase.Steps[si]); err != nil {
				return err
			}
		}
	}

	for name, session := range cfg.Sessions {
		if err := validateSession(name, &session); err != nil {
			return err
		}
	}

	if cfg.Incremental != nil {
		if err := validateIncremental(cfg.Incremental); err != nil {
			return err
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		switch cfg.Metrics.Collector {
		case MetricsCollectorConsole, MetricsCollectorJSON, MetricsCollectorPrometheus:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownMetricsCollector, cfg.Metrics.Collector)
		}
	}

	return nil
}

// validateStep валидирует один шаг.
func validateStep(phase string, index int, step *StepConfig) error {
	if step.Session == "" {
		return NewValidationError(phase, index, "session",
			fmt.Sprintf("step %d has empty session", index), ErrEmptySession)
	}

	if !validMethods[step.Request.Method] {
		return NewValidationError(phase, index, "request.method",
			fmt.Sprintf("step %d: unknown method %q", index, step.Request.Method), ErrUnknownMethod)
	}

	if step.Request.Endpoint == "" {
		return NewValidationError(phase, index, "request.endpoint",
			fmt.Sprintf("step %d has empty endpoint", index), ErrEmptyEndpoint)
	}

	if step.Request.Data != nil && step.Request.FromFile != "" {
		return NewValidationError(phase, index, "request",
			fmt.Sprintf("step %d sets both data and from_file", index), ErrDataAndFromFile)
	}

	switch step.OnError {
	case OnErrorAbort, OnErrorIgnore:
	default:
		return NewValidationError(phase, index, "on_error",
			fmt.Sprintf("step %d: unknown on_error %q", index, step.OnError), ErrUnknownOnError)
	}

	if step.Iterate != "" {
		if _, _, err := ParseIterate(step.Iterate); err != nil {
			return NewValidationError(phase, index, "iterate",
				fmt.Sprintf("step %d: %v", index, err), ErrBadIterate)
		}
	}

	for ri, rule := range step.Store {
		if rule.Var == "" {
			return NewValidationError(phase, index, "store",
				fmt.Sprintf("step %d: store rule %d has empty var", index, ri), ErrEmptyStoreVar)
		}
	}

	if step.Retry != nil {
		if err := validateRetry(phase, index, step.Retry); err != nil {
			return err
		}
	}

	return nil
}

// validateRetry проверяет согласованность политики повторов.
func validateRetry(phase string, index int, retry *RetryConfig) error {
	if retry.MaxRetries < 0 {
		return NewValidationError(phase, index, "retry.max_retries",
			fmt.Sprintf("step %d: max_retries %d is negative", index, retry.MaxRetries), ErrNegativeRetries)
	}
	if cb := retry.CircuitBreaker; cb != nil {
		if retry.MaxRetries < cb.Threshold {
			return NewValidationError(phase, index, "retry.circuit_breaker",
				fmt.Sprintf("step %d: max_retries %d < threshold %d",
					index, retry.MaxRetries, cb.Threshold), ErrBreakerThreshold)
		}
	}
	return nil
}

// validateSession проверяет конфигурацию временной сессии.
func validateSession(name string, session *SessionConfig) error {
	if session.Auth != nil && !validAuthTypes[session.Auth.Type] {
		return fmt.Errorf("%w: session %s: %s", ErrUnknownAuthType, name, session.Auth.Type)
	}
	if session.Retry != nil {
		if err := validateRetry("session "+name, -1, session.Retry); err != nil {
			return err
		}
	}
	return nil
}

// validateIncremental проверяет полноту настроек checkpoint-хранилища.
func validateIncremental(inc *IncrementalConfig) error {
	if !inc.Enabled {
		return nil
	}
	switch inc.Store {
	case CheckpointStoreFile:
		// file_path необязателен: есть каталог по умолчанию
	case CheckpointStoreRemote:
		if inc.Session == "" || inc.Endpoint == "" {
			return fmt.Errorf("%w: remote store requires session and endpoint", ErrIncompleteCheckpointStore)
		}
	case CheckpointStorePostgres:
		if inc.DSN == "" {
			return fmt.Errorf("%w: postgres store requires dsn", ErrIncompleteCheckpointStore)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCheckpointStore, inc.Store)
	}
	return nil
}
