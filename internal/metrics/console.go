package metrics

import (
	"log/slog"
	"sync"
)

// ConsoleCollector пишет метрики в лог по ходу выполнения
// и итоговую сводку при Finalize.
type ConsoleCollector struct {
	logger *slog.Logger

	mu       sync.Mutex
	requests int
	failed   int
	retries  int
	playbook PlaybookMetrics
}

// NewConsoleCollector создаёт консольный коллектор.
func NewConsoleCollector(logger *slog.Logger) *ConsoleCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleCollector{logger: logger}
}

func (c *ConsoleCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	c.requests++
	if !m.Success {
		c.failed++
	}
	c.mu.Unlock()

	c.logger.Info("request metrics",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status", m.StatusCode,
		"attempts", m.Attempts,
		"duration", m.Duration,
	)
}

func (c *ConsoleCollector) RecordStep(m StepMetrics) {
	c.mu.Lock()
	c.retries += m.RetryCount
	c.mu.Unlock()

	c.logger.Info("step metrics",
		"phase", m.Phase,
		"step", m.Index,
		"session", m.Session,
		"success", m.Success,
		"retries", m.RetryCount,
		"duration", m.Duration,
	)
}

func (c *ConsoleCollector) RecordPhase(m PhaseMetrics) {
	c.logger.Info("phase metrics",
		"phase", m.Name,
		"parallel", m.Parallel,
		"success", m.Success,
		"steps", m.Steps,
		"duration", m.Duration,
	)
}

func (c *ConsoleCollector) RecordPlaybook(m PlaybookMetrics) {
	c.mu.Lock()
	c.playbook = m
	c.mu.Unlock()
}

// Finalize пишет итоговую сводку выполнения.
func (c *ConsoleCollector) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("playbook summary",
		"success", c.playbook.Success,
		"resumed", c.playbook.Resumed,
		"duration", c.playbook.Duration,
		"phases", c.playbook.Phases,
		"steps", c.playbook.Steps,
		"requests", c.requests,
		"failed_requests", c.failed,
		"total_retries", c.retries,
	)
	return nil
}
