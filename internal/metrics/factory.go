package metrics

import (
	"fmt"
	"log/slog"

	"github.com/shalev007/restbook/internal/config"
)

// NewCollector создаёт коллектор по секции metrics плейбука.
// Возвращает (nil, nil), если метрики выключены.
func NewCollector(cfg *config.MetricsConfig, logger *slog.Logger) (Collector, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Collector {
	case config.MetricsCollectorConsole:
		return NewConsoleCollector(logger), nil

	case config.MetricsCollectorJSON:
		path := cfg.OutputFile
		if path == "" {
			path = "restbook-metrics.json"
		}
		return NewJSONCollector(path), nil

	case config.MetricsCollectorPrometheus:
		if cfg.PushGateway == "" {
			return nil, fmt.Errorf("prometheus collector requires push_gateway")
		}
		job := cfg.JobName
		if job == "" {
			job = "restbook"
		}
		return NewPrometheusCollector(cfg.PushGateway, job), nil

	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownMetricsCollector, cfg.Collector)
	}
}
