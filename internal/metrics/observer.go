package metrics

import (
	"sync"
	"time"

	"github.com/shalev007/restbook/internal/playbook"
)

// Observer транслирует события выполнения в метрики коллектора.
// Реализует playbook.Observer и playbook.Flusher.
type Observer struct {
	collector Collector

	mu            sync.Mutex
	playbookStart time.Time
	resumed       bool
	phaseStarts   map[string]time.Time
	phaseNames    map[string]string
	phaseParallel map[string]bool
	phaseSteps    map[string]int
	stepStarts    map[string]time.Time
	requests      int
	steps         int
	phases        int
}

// NewObserver создаёт наблюдателя поверх коллектора.
func NewObserver(collector Collector) *Observer {
	return &Observer{
		collector:     collector,
		phaseStarts:   map[string]time.Time{},
		phaseNames:    map[string]string{},
		phaseParallel: map[string]bool{},
		phaseSteps:    map[string]int{},
		stepStarts:    map[string]time.Time{},
	}
}

// Notify обрабатывает событие выполнения.
func (o *Observer) Notify(event playbook.Event) {
	switch e := event.(type) {
	case playbook.PlaybookStartEvent:
		o.mu.Lock()
		o.playbookStart = e.Time()
		o.resumed = e.Resumed
		o.mu.Unlock()

	case playbook.PlaybookEndEvent:
		o.mu.Lock()
		m := PlaybookMetrics{
			Success:  e.Success,
			Resumed:  o.resumed,
			Duration: e.Time().Sub(o.playbookStart),
			Requests: o.requests,
			Steps:    o.steps,
			Phases:   o.phases,
		}
		o.mu.Unlock()
		o.collector.RecordPlaybook(m)

	case playbook.PhaseStartEvent:
		o.mu.Lock()
		o.phaseStarts[e.PhaseID] = e.Time()
		o.phaseNames[e.PhaseID] = e.Name
		o.phaseParallel[e.PhaseID] = e.Parallel
		o.mu.Unlock()

	case playbook.PhaseEndEvent:
		o.mu.Lock()
		start := o.phaseStarts[e.PhaseID]
		parallel := o.phaseParallel[e.PhaseID]
		steps := o.phaseSteps[e.PhaseID]
		delete(o.phaseStarts, e.PhaseID)
		delete(o.phaseParallel, e.PhaseID)
		delete(o.phaseSteps, e.PhaseID)
		o.phases++
		o.mu.Unlock()
		o.collector.RecordPhase(PhaseMetrics{
			Name:     e.Name,
			Parallel: parallel,
			Success:  e.Success,
			Steps:    steps,
			Duration: e.Time().Sub(start),
		})

	case playbook.StepStartEvent:
		o.mu.Lock()
		o.stepStarts[e.StepID] = e.Time()
		o.mu.Unlock()

	case playbook.StepEndEvent:
		o.mu.Lock()
		start := o.stepStarts[e.StepID]
		delete(o.stepStarts, e.StepID)
		phase := o.phaseNames[e.PhaseID]
		o.phaseSteps[e.PhaseID]++
		o.steps++
		o.mu.Unlock()
		o.collector.RecordStep(StepMetrics{
			Phase:      phase,
			Index:      e.Index,
			Session:    e.Session,
			Success:    e.Success,
			RetryCount: e.RetryCount,
			Duration:   e.Time().Sub(start),
			StoredVars: e.StoredVars,
		})

	case playbook.RequestEndEvent:
		o.mu.Lock()
		o.requests++
		o.mu.Unlock()
		o.collector.RecordRequest(RequestMetrics{
			Method:        e.Method,
			Endpoint:      e.Endpoint,
			StatusCode:    e.StatusCode,
			Success:       e.Success,
			Attempts:      e.Attempts,
			Duration:      e.Duration,
			RequestBytes:  e.RequestBytes,
			ResponseBytes: e.ResponseBytes,
			Errors:        e.Errors,
		})
	}
}

// Flush финализирует коллектор по завершении выполнения.
func (o *Observer) Flush() error {
	return o.collector.Finalize()
}
