package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_RenderTable(t *testing.T) {
	var out, msg bytes.Buffer
	p := &Printer{out: &out, msg: &msg}

	err := p.Render(Table{
		Header: []string{"NAME", "AUTH"},
		Rows:   [][]string{{"api", "bearer"}, {"internal", "none"}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, output:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[1], "bearer") {
		t.Errorf("unexpected table output:\n%s", out.String())
	}
	if msg.Len() != 0 {
		t.Errorf("data must not go to the message stream: %q", msg.String())
	}
}

func TestPrinter_RenderJSONMode(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{json: true, out: &out}

	err := p.Render(Table{Header: []string{"NAME"}}, map[string]string{"name": "api"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); !strings.Contains(got, `"name": "api"`) {
		t.Errorf("json output = %q", got)
	}
	if strings.Contains(out.String(), "NAME") {
		t.Error("table must not be printed in JSON mode")
	}
}

func TestPrinter_SuccessfGoesToMessages(t *testing.T) {
	var out, msg bytes.Buffer
	p := &Printer{out: &out, msg: &msg}

	p.Successf("Session saved: %s", "api")

	if got := msg.String(); got != "Session saved: api\n" {
		t.Errorf("message = %q", got)
	}
	if out.Len() != 0 {
		t.Errorf("messages must not go to the data stream: %q", out.String())
	}
}
