package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONCollector накапливает метрики в памяти и записывает их
// одним JSON-документом при Finalize.
type JSONCollector struct {
	path string

	mu       sync.Mutex
	requests []RequestMetrics
	steps    []StepMetrics
	phases   []PhaseMetrics
	playbook PlaybookMetrics
}

// NewJSONCollector создаёт коллектор с записью в файл path.
func NewJSONCollector(path string) *JSONCollector {
	return &JSONCollector{path: path}
}

func (c *JSONCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	c.requests = append(c.requests, m)
	c.mu.Unlock()
}

func (c *JSONCollector) RecordStep(m StepMetrics) {
	c.mu.Lock()
	c.steps = append(c.steps, m)
	c.mu.Unlock()
}

func (c *JSONCollector) RecordPhase(m PhaseMetrics) {
	c.mu.Lock()
	c.phases = append(c.phases, m)
	c.mu.Unlock()
}

func (c *JSONCollector) RecordPlaybook(m PlaybookMetrics) {
	c.mu.Lock()
	c.playbook = m
	c.mu.Unlock()
}

// Finalize записывает накопленные метрики в выходной файл.
func (c *JSONCollector) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := struct {
		Playbook PlaybookMetrics  `json:"playbook"`
		Phases   []PhaseMetrics   `json:"phases"`
		Steps    []StepMetrics    `json:"steps"`
		Requests []RequestMetrics `json:"requests"`
	}{
		Playbook: c.playbook,
		Phases:   c.phases,
		Steps:    c.steps,
		Requests: c.requests,
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics report: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := os.WriteFile(c.path, payload, 0o644); err != nil {
		return fmt.Errorf("write metrics report: %w", err)
	}
	return nil
}
