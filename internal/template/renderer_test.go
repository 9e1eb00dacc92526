package template

import (
	"errors"
	"testing"
)

func TestRender_PlainString(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("users/42", map[string]any{"user_id": "ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "users/42" {
		t.Errorf("expected passthrough, got %q", out)
	}
}

func TestRender_Variables(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name    string
		tmpl    string
		context map[string]any
		want    string
	}{
		{
			name:    "simple variable",
			tmpl:    "users/{{ .user_id }}",
			context: map[string]any{"user_id": "42"},
			want:    "users/42",
		},
		{
			name:    "nested map access",
			tmpl:    "{{ .item.name }}",
			context: map[string]any{"item": map[string]any{"name": "alpha"}},
			want:    "alpha",
		},
		{
			name:    "numeric value",
			tmpl:    "page={{ .page }}",
			context: map[string]any{"page": 3},
			want:    "page=3",
		},
		{
			name:    "upper function",
			tmpl:    "{{ upper .region }}",
			context: map[string]any{"region": "eu"},
			want:    "EU",
		},
		{
			name:    "default function",
			tmpl:    "{{ default \"anonymous\" .user }}",
			context: map[string]any{"user": ""},
			want:    "anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.tmpl, tt.context)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRender_EnvInjection(t *testing.T) {
	r := NewRenderer()
	r.env = func(name string) string {
		if name == "API_HOST" {
			return "api.example.com"
		}
		return ""
	}

	out, err := r.Render("https://{{ .env.API_HOST }}/v1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "https://api.example.com/v1" {
		t.Errorf("got %q", out)
	}
}

func TestRender_EnvNotInjectedWithoutReference(t *testing.T) {
	r := NewRenderer()
	called := false
	r.env = func(string) string {
		called = true
		return ""
	}

	if _, err := r.Render("{{ .user_id }}", map[string]any{"user_id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("env lookup should not happen for templates without env references")
	}
}

func TestRender_ParseError(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render("{{ .broken", nil)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestRenderMap_DoesNotMutateInput(t *testing.T) {
	r := NewRenderer()

	input := map[string]any{
		"name":  "{{ .name }}",
		"count": 5,
		"tags":  []any{"{{ .tag }}", "static"},
	}
	context := map[string]any{"name": "alpha", "tag": "beta"}

	out, err := r.RenderMap(input, context)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if input["name"] != "{{ .name }}" {
		t.Error("input map was mutated")
	}
	if out["name"] != "alpha" {
		t.Errorf("got %v", out["name"])
	}
	if out["count"] != 5 {
		t.Errorf("non-string leaf changed: %v", out["count"])
	}
	tags, ok := out["tags"].([]any)
	if !ok || tags[0] != "beta" || tags[1] != "static" {
		t.Errorf("got tags %v", out["tags"])
	}
}

func TestRender_CacheReuse(t *testing.T) {
	r := NewRenderer()

	for i := 0; i < 3; i++ {
		out, err := r.Render("{{ .v }}", map[string]any{"v": "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "x" {
			t.Errorf("got %q", out)
		}
	}
	if len(r.cache) != 1 {
		t.Errorf("expected one cached template, got %d", len(r.cache))
	}
}
