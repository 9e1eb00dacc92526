package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PrometheusCollector отправляет метрики выполнения в push gateway.
//
// Метрики регистрируются в собственном registry и пушатся одним
// batch'ем при Finalize: жизнь процесса слишком коротка для scrape.
type PrometheusCollector struct {
	pusher *push.Pusher

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestRetries  prometheus.Counter
	stepsTotal      *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	playbookResult  *prometheus.GaugeVec
}

// NewPrometheusCollector создаёт коллектор для gateway и job.
func NewPrometheusCollector(gateway, job string) *PrometheusCollector {
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restbook_requests_total",
			Help: "Total HTTP requests issued by the playbook",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restbook_request_duration_seconds",
			Help:    "HTTP request duration including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		requestRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restbook_request_retries_total",
			Help: "Total request retries",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restbook_steps_total",
			Help: "Total executed steps",
		}, []string{"phase", "success"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restbook_phase_duration_seconds",
			Help:    "Phase duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		playbookResult: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "restbook_playbook_success",
			Help: "1 if the playbook completed successfully",
		}, []string{"resumed"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.requestRetries,
		c.stepsTotal,
		c.phaseDuration,
		c.playbookResult,
	)
	c.pusher = push.New(gateway, job).Gatherer(registry)
	return c
}

func (c *PrometheusCollector) RecordRequest(m RequestMetrics) {
	c.requestsTotal.WithLabelValues(m.Method, strconv.Itoa(m.StatusCode)).Inc()
	c.requestDuration.WithLabelValues(m.Method).Observe(m.Duration.Seconds())
	if m.Attempts > 1 {
		c.requestRetries.Add(float64(m.Attempts - 1))
	}
}

func (c *PrometheusCollector) RecordStep(m StepMetrics) {
	c.stepsTotal.WithLabelValues(m.Phase, strconv.FormatBool(m.Success)).Inc()
}

func (c *PrometheusCollector) RecordPhase(m PhaseMetrics) {
	c.phaseDuration.WithLabelValues(m.Name).Observe(m.Duration.Seconds())
}

func (c *PrometheusCollector) RecordPlaybook(m PlaybookMetrics) {
	value := 0.0
	if m.Success {
		value = 1.0
	}
	c.playbookResult.WithLabelValues(strconv.FormatBool(m.Resumed)).Set(value)
}

// Finalize пушит накопленные метрики в gateway.
func (c *PrometheusCollector) Finalize() error {
	if err := c.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
