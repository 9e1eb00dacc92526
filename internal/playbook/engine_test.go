package playbook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/shalev007/restbook/internal/checkpoint"
	"github.com/shalev007/restbook/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingServer записывает пути запросов и отвечает по таблице.
type recordingServer struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
}

func newRecordingServer(t *testing.T, handler func(path string, w http.ResponseWriter)) *recordingServer {
	t.Helper()

	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.Method+" "+r.URL.Path)
		rs.mu.Unlock()
		handler(r.URL.Path, w)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) requests() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]string, len(rs.paths))
	copy(out, rs.paths)
	return out
}

func (rs *recordingServer) count(path string) int {
	n := 0
	for _, p := range rs.requests() {
		if p == path {
			n++
		}
	}
	return n
}

func basePlaybook(baseURL string, phases ...config.PhaseConfig) *config.PlaybookConfig {
	return &config.PlaybookConfig{
		Sessions: map[string]config.SessionConfig{
			"api": {BaseURL: baseURL},
		},
		Phases: phases,
	}
}

func TestEngine_VariableFlowAcrossPhases(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		switch path {
		case "/users":
			w.Write([]byte(`{"id": 7}`))
		case "/users/7":
			w.Write([]byte(`{"name": "alpha"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "create",
			Steps: []config.StepConfig{
				{
					Session: "api",
					Request: config.RequestConfig{Method: config.MethodPost, Endpoint: "/users"},
					Store:   []config.StoreConfig{{Var: "user_id", Query: "id"}},
				},
			},
		},
		config.PhaseConfig{
			Name: "read",
			Steps: []config.StepConfig{
				{
					Session: "api",
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/users/{{ .user_id }}"},
					Store:   []config.StoreConfig{{Var: "user_name", Query: "name"}},
				},
			},
		},
	)

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"POST /users", "GET /users/7"}
	if got := server.requests(); !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
	if v, _ := engine.Vars().Get("user_name"); v != "alpha" {
		t.Errorf("user_name = %v", v)
	}
}

func TestEngine_IterateOverStoredList(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		if path == "/batch" {
			w.Write([]byte(`{"ids": [1, 2, 3]}`))
			return
		}
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{
					Session: "api",
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/batch"},
					Store:   []config.StoreConfig{{Var: "ids", Query: "ids"}},
				},
				{
					Session: "api",
					Iterate: "id in ids",
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/items/{{ .id }}"},
				},
			},
		},
	)

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"GET /batch", "GET /items/1", "GET /items/2", "GET /items/3"}
	if got := server.requests(); !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestEngine_OnErrorIgnoreContinues(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		if path == "/flaky" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{
					Session: "api",
					OnError: config.OnErrorIgnore,
					Retry:   &config.RetryConfig{MaxRetries: 0},
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/flaky"},
				},
				{
					Session: "api",
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/next"},
				},
			},
		},
	)

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("ignored failure must not abort: %v", err)
	}
	if server.count("GET /next") != 1 {
		t.Errorf("requests = %v", server.requests())
	}
}

func TestEngine_AbortStopsPlaybook(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		if path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{
					Session: "api",
					Retry:   &config.RetryConfig{MaxRetries: 0},
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/broken"},
				},
				{
					Session: "api",
					Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/never"},
				},
			},
		},
	)

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if server.count("GET /never") != 0 {
		t.Errorf("steps after an aborting failure must not run: %v", server.requests())
	}
}

func TestEngine_ParallelPhase(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name:     "fanout",
			Parallel: true,
			Steps: []config.StepConfig{
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/b"}},
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/c"}},
			},
		},
	)

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, path := range []string{"GET /a", "GET /b", "GET /c"} {
		if server.count(path) != 1 {
			t.Errorf("%s executed %d times", path, server.count(path))
		}
	}
}

func TestEngine_StopChannel(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
			},
		},
	)

	stop := make(chan struct{})
	close(stop)

	engine := NewEngine(cfg, testLogger(), Options{Stop: stop})
	err := engine.Execute(context.Background())
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if len(server.requests()) != 0 {
		t.Errorf("no requests expected, got %v", server.requests())
	}
}

func TestEngine_ResumeSkipsCompletedWork(t *testing.T) {
	var failSecondPhase = true
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		switch path {
		case "/setup/a", "/setup/b":
			w.Write([]byte(`{"token": "t-1"}`))
		case "/load":
			if failSecondPhase {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cfgFor := func() *config.PlaybookConfig {
		cfg := basePlaybook(server.URL,
			config.PhaseConfig{
				Name: "setup",
				Steps: []config.StepConfig{
					{
						Session: "api",
						Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/setup/a"},
						Store:   []config.StoreConfig{{Var: "token", Query: "token"}},
					},
					{
						Session: "api",
						Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/setup/b"},
					},
				},
			},
			config.PhaseConfig{
				Name: "load",
				Steps: []config.StepConfig{
					{
						Session: "api",
						Retry:   &config.RetryConfig{MaxRetries: 0},
						Request: config.RequestConfig{
							Method:   config.MethodGet,
							Endpoint: "/load",
							Headers:  map[string]any{"X-Token": "{{ .token }}"},
						},
					},
				},
			},
		)
		cfg.Incremental = &config.IncrementalConfig{Enabled: true, Store: config.CheckpointStoreFile}
		return cfg
	}

	dir := t.TempDir()
	newManager := func(cfg *config.PlaybookConfig) *checkpoint.Manager {
		store, err := checkpoint.NewFileStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, err := checkpoint.NewManager(cfg, store, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return m
	}

	// Первый запуск падает во второй фазе
	cfg := cfgFor()
	engine := NewEngine(cfg, testLogger(), Options{Checkpoints: newManager(cfg)})
	if err := engine.Execute(context.Background()); err == nil {
		t.Fatal("first run must fail")
	}

	// Второй запуск продолжает с контрольной точки
	failSecondPhase = false
	cfg = cfgFor()
	engine = NewEngine(cfg, testLogger(), Options{Checkpoints: newManager(cfg)})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	// Фаза setup выполнилась ровно один раз за оба запуска
	if n := server.count("GET /setup/a"); n != 1 {
		t.Errorf("/setup/a executed %d times", n)
	}
	if n := server.count("GET /setup/b"); n != 1 {
		t.Errorf("/setup/b executed %d times", n)
	}
	if n := server.count("GET /load"); n != 2 {
		t.Errorf("/load executed %d times", n)
	}

	// Переменные восстановлены из контрольной точки
	if v, _ := engine.Vars().Get("token"); v != "t-1" {
		t.Errorf("token = %v", v)
	}

	// Успешное завершение удаляет контрольную точку
	cfg = cfgFor()
	m := newManager(cfg)
	if m.Load(context.Background()) != nil {
		t.Error("checkpoint must be cleared after success")
	}
}

func TestEngine_ResumeRendersSessionFromRestoredVariables(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{}`))
	})

	// base_url сессии шаблонный: значение приходит из контрольной точки
	cfg := basePlaybook("{{ .base }}",
		config.PhaseConfig{
			Name: "setup",
			Steps: []config.StepConfig{
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/b"}},
			},
		},
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/second"}},
			},
		},
	)
	cfg.Incremental = &config.IncrementalConfig{Enabled: true, Store: config.CheckpointStoreFile}

	dir := t.TempDir()
	newManager := func() *checkpoint.Manager {
		store, err := checkpoint.NewFileStore(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, err := checkpoint.NewManager(cfg, store, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return m
	}

	// Точка указывает на конец первой фазы и несёт переменную base
	newManager().Save(context.Background(), 0, 1, map[string]any{"base": server.URL})

	engine := NewEngine(cfg, testLogger(), Options{Checkpoints: newManager()})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	want := []string{"GET /second"}
	if got := server.requests(); !reflect.DeepEqual(got, want) {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

// collectObserver накапливает типы событий.
type collectObserver struct {
	mu    sync.Mutex
	kinds []EventKind
}

func (o *collectObserver) Notify(event Event) {
	o.mu.Lock()
	o.kinds = append(o.kinds, event.Kind())
	o.mu.Unlock()
}

func TestEngine_EventSequence(t *testing.T) {
	server := newRecordingServer(t, func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{}`))
	})

	cfg := basePlaybook(server.URL,
		config.PhaseConfig{
			Name: "work",
			Steps: []config.StepConfig{
				{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
			},
		},
	)

	obs := &collectObserver{}
	observers := NewObservers(testLogger(), obs)

	engine := NewEngine(cfg, testLogger(), Options{Observers: observers})
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []EventKind{
		KindPlaybookStart,
		KindPhaseStart,
		KindStepStart,
		KindRequestStart,
		KindRequestEnd,
		KindStepEnd,
		KindPhaseEnd,
		KindPlaybookEnd,
	}
	if !reflect.DeepEqual(obs.kinds, want) {
		t.Errorf("events = %v, want %v", obs.kinds, want)
	}
}

func TestEngine_UnknownSessionFails(t *testing.T) {
	cfg := &config.PlaybookConfig{
		Phases: []config.PhaseConfig{
			{
				Name: "work",
				Steps: []config.StepConfig{
					{Session: "ghost", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
				},
			},
		},
	}

	engine := NewEngine(cfg, testLogger(), Options{})
	if err := engine.Execute(context.Background()); err == nil {
		t.Error("expected error for unknown session")
	}
}
