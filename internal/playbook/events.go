package playbook

import "time"

// EventKind — тип события выполнения.
type EventKind string

// Типы событий.
const (
	KindPlaybookStart EventKind = "playbook_start"
	KindPlaybookEnd   EventKind = "playbook_end"
	KindPhaseStart    EventKind = "phase_start"
	KindPhaseEnd      EventKind = "phase_end"
	KindStepStart     EventKind = "step_start"
	KindStepEnd       EventKind = "step_end"
	KindRequestStart  EventKind = "request_start"
	KindRequestEnd    EventKind = "request_end"
)

// Event — событие жизненного цикла выполнения плейбука.
//
// Набор вариантов закрыт: наблюдатели различают события
// переключением по конкретному типу.
type Event interface {
	Kind() EventKind
	Time() time.Time
}

type baseEvent struct {
	At time.Time `json:"at"`
}

func (e baseEvent) Time() time.Time { return e.At }

// PlaybookStartEvent — начало выполнения плейбука.
type PlaybookStartEvent struct {
	baseEvent
	Resumed bool `json:"resumed"`
}

func (PlaybookStartEvent) Kind() EventKind { return KindPlaybookStart }

// PlaybookEndEvent — завершение выполнения плейбука.
type PlaybookEndEvent struct {
	baseEvent
	Success bool `json:"success"`
}

func (PlaybookEndEvent) Kind() EventKind { return KindPlaybookEnd }

// PhaseStartEvent — начало фазы.
type PhaseStartEvent struct {
	baseEvent
	PhaseID  string `json:"phase_id"`
	Name     string `json:"name"`
	Index    int    `json:"index"`
	Parallel bool   `json:"parallel"`
}

func (PhaseStartEvent) Kind() EventKind { return KindPhaseStart }

// PhaseEndEvent — завершение фазы.
type PhaseEndEvent struct {
	baseEvent
	PhaseID string `json:"phase_id"`
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Success bool   `json:"success"`
}

func (PhaseEndEvent) Kind() EventKind { return KindPhaseEnd }

// StepStartEvent — начало шага.
type StepStartEvent struct {
	baseEvent
	PhaseID string `json:"phase_id"`
	StepID  string `json:"step_id"`
	Index   int    `json:"index"`
	Session string `json:"session"`
}

func (StepStartEvent) Kind() EventKind { return KindStepStart }

// StepEndEvent — завершение шага.
type StepEndEvent struct {
	baseEvent
	PhaseID    string   `json:"phase_id"`
	StepID     string   `json:"step_id"`
	Index      int      `json:"index"`
	Session    string   `json:"session"`
	Success    bool     `json:"success"`
	RetryCount int      `json:"retry_count"`
	StoredVars []string `json:"stored_vars,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func (StepEndEvent) Kind() EventKind { return KindStepEnd }

// RequestStartEvent — начало HTTP-вызова.
type RequestStartEvent struct {
	baseEvent
	StepID    string `json:"step_id"`
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
	Endpoint  string `json:"endpoint"`
}

func (RequestStartEvent) Kind() EventKind { return KindRequestStart }

// RequestEndEvent — завершение HTTP-вызова со всеми повторами.
type RequestEndEvent struct {
	baseEvent
	StepID        string        `json:"step_id"`
	RequestID     string        `json:"request_id"`
	Method        string        `json:"method"`
	Endpoint      string        `json:"endpoint"`
	StatusCode    int           `json:"status_code"`
	Success       bool          `json:"success"`
	Attempts      int           `json:"attempts"`
	Duration      time.Duration `json:"duration"`
	RequestBytes  int           `json:"request_bytes"`
	ResponseBytes int           `json:"response_bytes"`
	Errors        []string      `json:"errors,omitempty"`
}

func (RequestEndEvent) Kind() EventKind { return KindRequestEnd }
