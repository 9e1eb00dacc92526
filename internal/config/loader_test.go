package config

import (
	"errors"
	"testing"
)

const validPlaybook = `
sessions:
  api:
    base_url: https://api.example.com
    auth:
      type: bearer
      credentials:
        token: "{{ .env.API_TOKEN }}"
    timeout_sec: 15

phases:
  - name: setup
    steps:
      - session: api
        request:
          method: post
          endpoint: /users
          data:
            name: alpha
        store:
          - var: user_id
            query: id
  - name: load
    parallel: true
    steps:
      - session: api
        request:
          endpoint: /users/{{ .user_id }}
        on_error: ignore
      - session: api
        iterate: item in user_ids
        request:
          endpoint: /users/{{ .item }}

incremental:
  enabled: true

metrics:
  enabled: true
`

func TestParse_ValidPlaybook(t *testing.T) {
	cfg, err := Parse([]byte(validPlaybook))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Phases) != 2 {
		t.Fatalf("phases = %d", len(cfg.Phases))
	}
	if !cfg.Phases[1].Parallel {
		t.Error("second phase should be parallel")
	}

	sess, ok := cfg.Sessions["api"]
	if !ok {
		t.Fatal("session api missing")
	}
	if sess.TimeoutSec != 15 {
		t.Errorf("timeout_sec = %d", sess.TimeoutSec)
	}
	if sess.Auth.Type != AuthBearer {
		t.Errorf("auth type = %s", sess.Auth.Type)
	}
}

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validPlaybook))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Метод нормализуется к верхнему регистру
	if cfg.Phases[0].Steps[0].Request.Method != MethodPost {
		t.Errorf("method = %s", cfg.Phases[0].Steps[0].Request.Method)
	}
	// GET по умолчанию
	if cfg.Phases[1].Steps[0].Request.Method != MethodGet {
		t.Errorf("default method = %s", cfg.Phases[1].Steps[0].Request.Method)
	}
	// abort по умолчанию
	if cfg.Phases[0].Steps[0].OnError != OnErrorAbort {
		t.Errorf("default on_error = %s", cfg.Phases[0].Steps[0].OnError)
	}
	if cfg.Phases[1].Steps[0].OnError != OnErrorIgnore {
		t.Errorf("on_error = %s", cfg.Phases[1].Steps[0].OnError)
	}
	// file store по умолчанию
	if cfg.Incremental.Store != CheckpointStoreFile {
		t.Errorf("store = %s", cfg.Incremental.Store)
	}
	// console collector по умолчанию
	if cfg.Metrics.Collector != MetricsCollectorConsole {
		t.Errorf("collector = %s", cfg.Metrics.Collector)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "no phases",
			yaml: `phases: []`,
			want: ErrEmptyPhases,
		},
		{
			name: "empty phase name",
			yaml: `
phases:
  - steps:
      - session: api
        request:
          endpoint: /a
`,
			want: ErrEmptyPhaseName,
		},
		{
			name: "duplicate phase names",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
  - name: x
    steps:
      - session: api
        request:
          endpoint: /b
`,
			want: ErrDuplicatePhaseName,
		},
		{
			name: "phase without steps",
			yaml: `
phases:
  - name: empty
    steps: []
`,
			want: ErrEmptySteps,
		},
		{
			name: "step without session",
			yaml: `
phases:
  - name: x
    steps:
      - request:
          endpoint: /a
`,
			want: ErrEmptySession,
		},
		{
			name: "unknown method",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          method: FETCH
          endpoint: /a
`,
			want: ErrUnknownMethod,
		},
		{
			name: "missing endpoint",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          method: GET
`,
			want: ErrEmptyEndpoint,
		},
		{
			name: "data and from_file together",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
          data:
            k: v
          from_file: body.json
`,
			want: ErrDataAndFromFile,
		},
		{
			name: "unknown on_error",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        on_error: retry
        request:
          endpoint: /a
`,
			want: ErrUnknownOnError,
		},
		{
			name: "bad iterate expression",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        iterate: "item over collection"
        request:
          endpoint: /a
`,
			want: ErrBadIterate,
		},
		{
			name: "store rule without var",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
        store:
          - query: id
`,
			want: ErrEmptyStoreVar,
		},
		{
			name: "breaker threshold above max_retries",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
        retry:
          max_retries: 2
          circuit_breaker:
            threshold: 5
            reset_sec: 10
`,
			want: ErrBreakerThreshold,
		},
		{
			name: "negative max_retries",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
        retry:
          max_retries: -1
`,
			want: ErrNegativeRetries,
		},
		{
			name: "unknown auth type",
			yaml: `
sessions:
  api:
    base_url: https://x
    auth:
      type: kerberos
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
`,
			want: ErrUnknownAuthType,
		},
		{
			name: "incomplete remote checkpoint store",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
incremental:
  enabled: true
  store: remote
`,
			want: ErrIncompleteCheckpointStore,
		},
		{
			name: "unknown metrics collector",
			yaml: `
phases:
  - name: x
    steps:
      - session: api
        request:
          endpoint: /a
metrics:
  enabled: true
  collector: statsd
`,
			want: ErrUnknownMetricsCollector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_ValidationErrorContext(t *testing.T) {
	_, err := Parse([]byte(`
phases:
  - name: setup
    steps:
      - session: api
        request:
          method: NOPE
          endpoint: /a
`))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Phase != "setup" || verr.Step != 0 || verr.Field != "request.method" {
		t.Errorf("got %+v", verr)
	}
}

func TestParseIterate(t *testing.T) {
	item, collection, err := ParseIterate("user in users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != "user" || collection != "users" {
		t.Errorf("got %q, %q", item, collection)
	}

	for _, expr := range []string{"", "users", "a b c", "in in", "x on y"} {
		if _, _, err := ParseIterate(expr); err == nil {
			t.Errorf("expected error for %q", expr)
		}
	}
}
