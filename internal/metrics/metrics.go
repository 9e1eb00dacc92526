package metrics

import "time"

// RequestMetrics — метрики одного HTTP-вызова со всеми повторами.
type RequestMetrics struct {
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

// StepMetrics — метрики одного шага.
type StepMetrics struct {
	Phase      string        `json:"phase"`
	Index      int           `json:"index"`
	Session    string        `json:"session"`
	Success    bool          `json:"success"`
	RetryCount int           `json:"retry_count"`
	Duration   time.Duration `json:"duration"`
	StoredVars []string      `json:"stored_vars,omitempty"`
}

// PhaseMetrics — метрики одной фазы.
type PhaseMetrics struct {
	Name     string        `json:"name"`
	Parallel bool          `json:"parallel"`
	Success  bool          `json:"success"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// PlaybookMetrics — итоговые метрики выполнения.
type PlaybookMetrics struct {
	Success  bool          `json:"success"`
	Resumed  bool          `json:"resumed"`
	Duration time.Duration `json:"duration"`
	Requests int           `json:"requests"`
	Steps    int           `json:"steps"`
	Phases   int           `json:"phases"`
}

// Collector накапливает метрики выполнения плейбука.
//
// Методы Record* вызываются по ходу выполнения; Finalize — один раз
// по завершении, для сброса накопленного.
type Collector interface {
	RecordRequest(m RequestMetrics)
	RecordStep(m StepMetrics)
	RecordPhase(m PhaseMetrics)
	RecordPlaybook(m PlaybookMetrics)
	Finalize() error
}
