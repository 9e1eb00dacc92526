package metrics

import (
	"testing"

	"github.com/shalev007/restbook/internal/playbook"
)

// fakeCollector запоминает всё, что в него записали.
type fakeCollector struct {
	requests  []RequestMetrics
	steps     []StepMetrics
	phases    []PhaseMetrics
	playbooks []PlaybookMetrics
	finalized bool
}

func (c *fakeCollector) RecordRequest(m RequestMetrics)   { c.requests = append(c.requests, m) }
func (c *fakeCollector) RecordStep(m StepMetrics)         { c.steps = append(c.steps, m) }
func (c *fakeCollector) RecordPhase(m PhaseMetrics)       { c.phases = append(c.phases, m) }
func (c *fakeCollector) RecordPlaybook(m PlaybookMetrics) { c.playbooks = append(c.playbooks, m) }
func (c *fakeCollector) Finalize() error {
	c.finalized = true
	return nil
}

func TestObserver_TranslatesEvents(t *testing.T) {
	collector := &fakeCollector{}
	obs := NewObserver(collector)

	events := []playbook.Event{
		playbook.PlaybookStartEvent{Resumed: true},
		playbook.PhaseStartEvent{PhaseID: "p1", Name: "setup", Parallel: true},
		playbook.StepStartEvent{PhaseID: "p1", StepID: "s1", Session: "api"},
		playbook.RequestStartEvent{StepID: "s1", Method: "GET", Endpoint: "/a"},
		playbook.RequestEndEvent{
			StepID:     "s1",
			Method:     "GET",
			Endpoint:   "/a",
			StatusCode: 200,
			Success:    true,
			Attempts:   2,
		},
		playbook.StepEndEvent{
			PhaseID:    "p1",
			StepID:     "s1",
			Session:    "api",
			Success:    true,
			RetryCount: 1,
			StoredVars: []string{"token"},
		},
		playbook.PhaseEndEvent{PhaseID: "p1", Name: "setup", Success: true},
		playbook.PlaybookEndEvent{Success: true},
	}
	for _, e := range events {
		obs.Notify(e)
	}

	if len(collector.requests) != 1 {
		t.Fatalf("requests recorded: %d", len(collector.requests))
	}
	req := collector.requests[0]
	if req.Method != "GET" || req.Endpoint != "/a" || req.StatusCode != 200 || req.Attempts != 2 {
		t.Errorf("request metrics = %+v", req)
	}

	if len(collector.steps) != 1 {
		t.Fatalf("steps recorded: %d", len(collector.steps))
	}
	step := collector.steps[0]
	if step.Phase != "setup" || step.Session != "api" || step.RetryCount != 1 {
		t.Errorf("step metrics = %+v", step)
	}
	if len(step.StoredVars) != 1 || step.StoredVars[0] != "token" {
		t.Errorf("stored vars = %v", step.StoredVars)
	}

	if len(collector.phases) != 1 {
		t.Fatalf("phases recorded: %+v", collector.phases)
	}
	phase := collector.phases[0]
	if phase.Name != "setup" || !phase.Parallel || phase.Steps != 1 {
		t.Errorf("phase metrics = %+v", phase)
	}

	if len(collector.playbooks) != 1 {
		t.Fatalf("playbooks recorded: %d", len(collector.playbooks))
	}
	pb := collector.playbooks[0]
	if !pb.Success || !pb.Resumed || pb.Requests != 1 || pb.Steps != 1 || pb.Phases != 1 {
		t.Errorf("playbook metrics = %+v", pb)
	}
}

func TestObserver_FlushFinalizes(t *testing.T) {
	collector := &fakeCollector{}
	obs := NewObserver(collector)

	if err := obs.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !collector.finalized {
		t.Error("collector not finalized")
	}
}
