package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shalev007/restbook/internal/checkpoint"
	"github.com/shalev007/restbook/internal/config"
	"github.com/shalev007/restbook/internal/session"
)

func TestRunOnce_NoResumeIgnoresButKeepsCheckpoint(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cpDir := t.TempDir()
	cfg := &config.PlaybookConfig{
		Sessions: map[string]config.SessionConfig{
			"api": {BaseURL: server.URL},
		},
		Phases: []config.PhaseConfig{
			{
				Name: "work",
				Steps: []config.StepConfig{
					{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/a"}},
					{Session: "api", Request: config.RequestConfig{Method: config.MethodGet, Endpoint: "/b"}},
				},
			},
		},
		Incremental: &config.IncrementalConfig{
			Enabled:  true,
			Store:    config.CheckpointStoreFile,
			FilePath: cpDir,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	// Существующая точка указывает на конец фазы
	seed := func() *checkpoint.Manager {
		cpStore, err := checkpoint.NewFileStore(cpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, err := checkpoint.NewManager(cfg, cpStore, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return m
	}
	seed().Save(ctx, 0, 1, map[string]any{"token": "t-1"})

	store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runOnce(ctx, cfg, store, nil, true, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Точка проигнорирована: оба шага выполнены заново
	if got := hits.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}

	// Точка не удалена и по-прежнему читается
	data := seed().Load(ctx)
	if data == nil {
		t.Fatal("checkpoint must survive a --no-resume run")
	}
	if data.CurrentPhase != 0 || data.CurrentStep != 1 {
		t.Errorf("checkpoint = (%d,%d), want (0,1)", data.CurrentPhase, data.CurrentStep)
	}
}
