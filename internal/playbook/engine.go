package playbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shalev007/restbook/internal/checkpoint"
	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/request"
	"github.com/shalev007/restbook/internal/session"
	"github.com/shalev007/restbook/internal/telemetry"
	"github.com/shalev007/restbook/internal/vars"
)

var (
	// ErrStopped — выполнение остановлено по запросу graceful shutdown.
	ErrStopped = errors.New("execution stopped")

	// ErrBadCollection — переменная итерации не является списком или map.
	ErrBadCollection = errors.New("iterate collection must be a list or a map")
)

// SessionFallback возвращает сессию из постоянного хранилища,
// когда её нет среди сессий плейбука.
type SessionFallback func(name string) (*session.Session, error)

// Options — зависимости движка.
type Options struct {
	// Observers — получатели событий выполнения. Может быть nil.
	Observers *Observers

	// Checkpoints — менеджер контрольных точек. Может быть nil.
	Checkpoints *checkpoint.Manager

	// Stop — закрытие канала останавливает выдачу новых фаз и шагов.
	Stop <-chan struct{}

	// Fallback разрешает сессии, не объявленные в плейбуке.
	Fallback SessionFallback
}

// Engine выполняет плейбук: фазы по порядку, шаги последовательно
// или параллельно, с рендерингом шаблонов, извлечением переменных
// и контрольными точками.
type Engine struct {
	cfg         *config.PlaybookConfig
	logger      *slog.Logger
	vars        *vars.Manager
	renderer    *stepRenderer
	observers   *Observers
	checkpoints *checkpoint.Manager
	stop        <-chan struct{}
	fallback    SessionFallback

	sessions map[string]*session.Session

	now func() time.Time
}

// NewEngine создаёт движок для конфигурации cfg.
func NewEngine(cfg *config.PlaybookConfig, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	observers := opts.Observers
	if observers == nil {
		observers = NewObservers(logger)
	}
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		vars:        vars.NewManager(logger),
		renderer:    newStepRenderer(),
		observers:   observers,
		checkpoints: opts.Checkpoints,
		stop:        opts.Stop,
		fallback:    opts.Fallback,
		sessions:    map[string]*session.Session{},
		now:         time.Now,
	}
}

// Vars возвращает менеджер переменных движка.
func (e *Engine) Vars() *vars.Manager {
	return e.vars
}

// Execute выполняет плейбук от начала до конца или от контрольной точки.
func (e *Engine) Execute(ctx context.Context) (err error) {
	cp := e.loadCheckpoint(ctx)

	e.observers.Notify(PlaybookStartEvent{
		baseEvent: baseEvent{At: e.now()},
		Resumed:   cp != nil,
	})
	defer func() {
		e.observers.Notify(PlaybookEndEvent{
			baseEvent: baseEvent{At: e.now()},
			Success:   err == nil,
		})
		e.observers.Flush()
	}()

	if err := e.buildSessions(); err != nil {
		return err
	}

	for pi := range e.cfg.Phases {
		phase := &e.cfg.Phases[pi]

		if e.stopped() {
			return fmt.Errorf("%w before phase %q", ErrStopped, phase.Name)
		}
		if checkpoint.ShouldSkipPhase(cp, pi) {
			e.logger.Info("skipping completed phase", "phase", phase.Name)
			continue
		}

		if err := e.executePhase(ctx, pi, phase, cp); err != nil {
			return err
		}
	}

	if e.checkpoints != nil {
		e.checkpoints.Clear(ctx)
	}
	return nil
}

// loadCheckpoint читает контрольную точку и восстанавливает переменные.
func (e *Engine) loadCheckpoint(ctx context.Context) *checkpoint.Data {
	if e.checkpoints == nil {
		return nil
	}
	cp := e.checkpoints.Load(ctx)
	if cp == nil {
		return nil
	}

	e.logger.Info("resuming from checkpoint",
		"phase", cp.CurrentPhase,
		"step", cp.CurrentStep,
		"saved_at", cp.Timestamp,
	)
	if cp.Variables != nil {
		e.vars.SetAll(cp.Variables)
	}
	return cp
}

// buildSessions создаёт сессии, объявленные в плейбуке.
// Base URL и учётные данные рендерятся по текущим переменным (включая
// восстановленные из контрольной точки) и окружению (env.*).
func (e *Engine) buildSessions() error {
	renderCtx := e.vars.GetAll()

	for name, sc := range e.cfg.Sessions {
		rendered := sc

		baseURL, err := e.renderer.renderString(sc.BaseURL, renderCtx)
		if err != nil {
			return fmt.Errorf("session %s: render base_url: %w", name, err)
		}
		rendered.BaseURL = baseURL

		if sc.Auth != nil {
			auth := *sc.Auth
			auth.Credentials = make(map[string]string, len(sc.Auth.Credentials))
			for k, v := range sc.Auth.Credentials {
				value, err := e.renderer.renderString(v, renderCtx)
				if err != nil {
					return fmt.Errorf("session %s: render credential %s: %w", name, k, err)
				}
				auth.Credentials[k] = value
			}
			rendered.Auth = &auth
		}

		sess, err := session.FromConfig(name, rendered)
		if err != nil {
			return err
		}
		e.sessions[name] = sess
	}
	return nil
}

// resolveSession находит сессию: сначала среди сессий плейбука,
// затем через fallback.
func (e *Engine) resolveSession(name string) (*session.Session, error) {
	if sess, ok := e.sessions[name]; ok {
		return sess, nil
	}
	if e.fallback != nil {
		return e.fallback(name)
	}
	return nil, fmt.Errorf("%w: %s", session.ErrNotFound, name)
}

// executePhase выполняет одну фазу и рассылает её события.
func (e *Engine) executePhase(ctx context.Context, index int, phase *config.PhaseConfig, cp *checkpoint.Data) (err error) {
	phaseID := uuid.NewString()
	logger := telemetry.WithPhase(e.logger, phase.Name, phaseID)

	e.observers.Notify(PhaseStartEvent{
		baseEvent: baseEvent{At: e.now()},
		PhaseID:   phaseID,
		Name:      phase.Name,
		Index:     index,
		Parallel:  phase.Parallel,
	})
	defer func() {
		e.observers.Notify(PhaseEndEvent{
			baseEvent: baseEvent{At: e.now()},
			PhaseID:   phaseID,
			Name:      phase.Name,
			Index:     index,
			Success:   err == nil,
		})
	}()

	logger.Info("phase started", "parallel", phase.Parallel, "steps", len(phase.Steps))

	if phase.Parallel {
		err = e.executeParallelPhase(ctx, logger, phaseID, index, phase, cp)
	} else {
		err = e.executeSequentialPhase(ctx, logger, phaseID, index, phase, cp)
	}
	if err != nil {
		logger.Error("phase failed", "error", err)
		return err
	}

	logger.Info("phase completed")
	return nil
}

// executeSequentialPhase выполняет шаги по порядку, пропуская
// завершённые по контрольной точке и записывая точку после каждого шага.
func (e *Engine) executeSequentialPhase(ctx context.Context, logger *slog.Logger, phaseID string, phaseIndex int, phase *config.PhaseConfig, cp *checkpoint.Data) error {
	for si := range phase.Steps {
		if e.stopped() {
			return fmt.Errorf("%w before step %d of phase %q", ErrStopped, si, phase.Name)
		}
		if checkpoint.ShouldSkipStep(cp, phaseIndex, si) {
			logger.Info("skipping completed step", "step", si)
			continue
		}

		if err := e.executeStep(ctx, logger, phaseID, si, &phase.Steps[si]); err != nil {
			return err
		}
		if e.checkpoints != nil {
			e.checkpoints.Save(ctx, phaseIndex, si, e.vars.GetAll())
		}
	}
	return nil
}

// executeParallelPhase выполняет все шаги фазы одновременно.
//
// Частичное возобновление невозможно: если точка указывает внутрь
// этой фазы, фаза перезапускается целиком.
func (e *Engine) executeParallelPhase(ctx context.Context, logger *slog.Logger, phaseID string, phaseIndex int, phase *config.PhaseConfig, cp *checkpoint.Data) error {
	if checkpoint.ShouldRestartParallelPhase(cp, phaseIndex) {
		logger.Info("parallel phase cannot be resumed partially, restarting it")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for si := range phase.Steps {
		if e.stopped() {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%w before step %d of phase %q", ErrStopped, si, phase.Name))
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(si int) {
			defer wg.Done()
			if err := e.executeStep(ctx, logger, phaseID, si, &phase.Steps[si]); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(si)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if e.checkpoints != nil {
		e.checkpoints.Save(ctx, phaseIndex, len(phase.Steps)-1, e.vars.GetAll())
	}
	return nil
}

// executeStep выполняет шаг: одну итерацию или цикл по коллекции.
// Политика on_error применяется к каждой итерации отдельно.
func (e *Engine) executeStep(ctx context.Context, logger *slog.Logger, phaseID string, stepIndex int, step *config.StepConfig) error {
	if step.Iterate == "" {
		return e.finishIteration(ctx, logger, phaseID, stepIndex, step, e.vars.GetAll())
	}

	item, collection, err := config.ParseIterate(step.Iterate)
	if err != nil {
		return err
	}
	items, err := e.collectItems(collection)
	if err != nil {
		return err
	}

	if step.Parallel && len(items) > 1 {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		base := e.vars.GetAll()
		for i, value := range items {
			wg.Add(1)
			go func(i int, value any) {
				defer wg.Done()
				iterCtx := copyContext(base)
				iterCtx[item] = value
				iterCtx[item+"_index"] = i
				if err := e.finishIteration(ctx, logger, phaseID, stepIndex, step, iterCtx); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("iteration %d: %w", i, err))
					mu.Unlock()
				}
			}(i, value)
		}
		wg.Wait()
		return errors.Join(errs...)
	}

	for i, value := range items {
		// Переменные, записанные предыдущей итерацией, видны следующей
		iterCtx := e.vars.GetAll()
		iterCtx[item] = value
		iterCtx[item+"_index"] = i
		if err := e.finishIteration(ctx, logger, phaseID, stepIndex, step, iterCtx); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	return nil
}

// collectItems возвращает элементы коллекции итерации.
// Map итерируется по отсортированным ключам для детерминизма.
func (e *Engine) collectItems(name string) ([]any, error) {
	value, ok := e.vars.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: variable %q is not defined", ErrBadCollection, name)
	}

	switch c := value.(type) {
	case []any:
		return c, nil
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = k
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: variable %q has type %T", ErrBadCollection, name, value)
	}
}

// finishIteration выполняет одну итерацию шага и применяет on_error.
func (e *Engine) finishIteration(ctx context.Context, logger *slog.Logger, phaseID string, stepIndex int, step *config.StepConfig, renderCtx map[string]any) error {
	err := e.executeSingle(ctx, logger, phaseID, stepIndex, step, renderCtx)
	if err != nil && step.OnError == config.OnErrorIgnore {
		logger.Warn("step failed, error ignored", "step", stepIndex, "error", err)
		return nil
	}
	return err
}

// executeSingle выполняет один HTTP-вызов шага с повторами
// и сохраняет данные ответа в переменные.
func (e *Engine) executeSingle(ctx context.Context, logger *slog.Logger, phaseID string, stepIndex int, step *config.StepConfig, renderCtx map[string]any) error {
	stepID := uuid.NewString()
	logger = telemetry.WithStep(logger, stepID)

	sessionName, err := e.renderer.renderString(step.Session, renderCtx)
	if err != nil {
		return fmt.Errorf("render session name: %w", err)
	}

	e.observers.Notify(StepStartEvent{
		baseEvent: baseEvent{At: e.now()},
		PhaseID:   phaseID,
		StepID:    stepID,
		Index:     stepIndex,
		Session:   sessionName,
	})

	storedVars, retryCount, err := e.callStep(ctx, logger, stepID, sessionName, step, renderCtx)

	end := StepEndEvent{
		baseEvent:  baseEvent{At: e.now()},
		PhaseID:    phaseID,
		StepID:     stepID,
		Index:      stepIndex,
		Session:    sessionName,
		Success:    err == nil,
		RetryCount: retryCount,
		StoredVars: storedVars,
	}
	if err != nil {
		end.Error = err.Error()
	}
	e.observers.Notify(end)

	return err
}

// callStep рендерит запрос, выполняет его и извлекает переменные.
func (e *Engine) callStep(ctx context.Context, logger *slog.Logger, stepID, sessionName string, step *config.StepConfig, renderCtx map[string]any) (storedVars []string, retryCount int, err error) {
	sess, err := e.resolveSession(sessionName)
	if err != nil {
		return nil, 0, err
	}

	req, err := e.renderer.renderRequest(step.Request, renderCtx)
	if err != nil {
		return nil, 0, err
	}

	clientCfg, breaker := buildClientConfig(sess.Config(), step)
	client := request.NewClient(sess, clientCfg, logger, breaker)
	defer client.Close()

	spec := &request.Spec{
		Method:   string(req.Method),
		Endpoint: req.Endpoint,
		Headers:  toStringMap(req.Headers),
		Params:   toStringMap(req.Params),
	}
	if req.Data != nil {
		spec.Body = req.Data
	}

	requestID := uuid.NewString()
	logger = telemetry.WithRequest(logger, requestID)
	logger.Info("request started", "method", spec.Method, "endpoint", spec.Endpoint)

	e.observers.Notify(RequestStartEvent{
		baseEvent: baseEvent{At: e.now()},
		StepID:    stepID,
		RequestID: requestID,
		Method:    spec.Method,
		Endpoint:  spec.Endpoint,
	})

	resp, execErr := client.Execute(ctx, spec)
	stats := client.Stats()

	e.observers.Notify(RequestEndEvent{
		baseEvent:     baseEvent{At: e.now()},
		StepID:        stepID,
		RequestID:     requestID,
		Method:        spec.Method,
		Endpoint:      spec.Endpoint,
		StatusCode:    stats.StatusCode,
		Success:       stats.Success,
		Attempts:      stats.Attempts,
		Duration:      stats.FinishedAt.Sub(stats.StartedAt),
		RequestBytes:  stats.RequestBytes,
		ResponseBytes: stats.ResponseBytes,
		Errors:        stats.Errors,
	})

	if execErr != nil {
		logger.Error("request failed", "error", execErr, "attempts", stats.Attempts)
		return nil, stats.RetryCount, execErr
	}
	logger.Info("request completed", "status", stats.StatusCode, "attempts", stats.Attempts)

	if len(step.Store) > 0 {
		stores, err := e.renderer.renderStores(step.Store, renderCtx)
		if err != nil {
			return nil, stats.RetryCount, err
		}
		if err := e.vars.StoreResponseData(stores, resp.Body); err != nil {
			return nil, stats.RetryCount, err
		}
		for _, s := range stores {
			storedVars = append(storedVars, s.Var)
		}
	}

	return storedVars, stats.RetryCount, nil
}

// buildClientConfig собирает конфигурацию клиента из настроек сессии
// и переопределений шага.
func buildClientConfig(sc config.SessionConfig, step *config.StepConfig) (request.Config, *request.CircuitBreaker) {
	cfg := request.DefaultConfig()
	cfg.RetryOn404 = step.RetryOn404

	if sc.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(sc.TimeoutSec) * time.Second
	}
	if step.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(step.TimeoutSec) * time.Second
	}

	if sc.ValidateSSL != nil {
		cfg.ValidateSSL = *sc.ValidateSSL
	}
	if step.ValidateSSL != nil {
		cfg.ValidateSSL = *step.ValidateSSL
	}

	// Политика шага замещает политику сессии целиком
	retry := sc.Retry
	if step.Retry != nil {
		retry = step.Retry
	}
	if retry == nil {
		return cfg, nil
	}

	cfg.MaxRetries = retry.MaxRetries
	cfg.BackoffFactor = retry.BackoffFactor
	cfg.MaxDelay = retry.MaxDelay()

	if rl := retry.RateLimit; rl != nil {
		if rl.UseServerRetryDelay != nil {
			cfg.UseServerRetryDelay = *rl.UseServerRetryDelay
		}
		if rl.RetryHeader != "" {
			cfg.RetryHeader = rl.RetryHeader
		}
	}

	var breaker *request.CircuitBreaker
	if cb := retry.CircuitBreaker; cb != nil {
		breaker = request.NewCircuitBreaker(
			cb.Threshold,
			time.Duration(cb.ResetSec)*time.Second,
			time.Duration(cb.JitterSec*float64(time.Second)),
		)
	}
	return cfg, breaker
}

// stopped сообщает, запрошена ли graceful-остановка.
func (e *Engine) stopped() bool {
	if e.stop == nil {
		return false
	}
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

func toStringMap(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func copyContext(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
