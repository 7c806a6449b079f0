package diagrams

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/devcompass/internal/viewport"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"fenced", "```mermaid\ngraph TD;A-->B\n```", "graph TD;A-->B"},
		{"upper case tag", "```Mermaid\ngraph TD\n  A-->B\n```\n", "graph TD\n  A-->B"},
		{"bare fence", "```\ngraph LR\nA-->B\n```", "graph LR\nA-->B"},
		{"unfenced", "  graph TD;A-->B \n", "graph TD;A-->B"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFence(tt.in); got != tt.want {
				t.Errorf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	if _, err := Prepare("```mermaid\n```"); !errors.Is(err, ErrEmptyScript) {
		t.Errorf("err = %v, want ErrEmptyScript", err)
	}
	got, err := Prepare("```mermaid\ngraph TD;A-->B\n```")
	if err != nil || got != "graph TD;A-->B" {
		t.Errorf("Prepare = %q, %v", got, err)
	}
}

func TestIsFlowchart(t *testing.T) {
	if !IsFlowchart("%% files\n\nflowchart LR\nA-->B") {
		t.Error("flowchart not detected")
	}
	if IsFlowchart("sequenceDiagram\nA->>B: hi") {
		t.Error("sequence diagram detected as flowchart")
	}
}

func TestSanitize(t *testing.T) {
	in := strings.Join([]string{
		"```mermaid",
		"graph TD",
		"graph LR",
		"    src/main.go(entry)[main (cli)] --> pkg[\"pkg <core>\"]",
		"    subgraph api",
		"    a-->|calls| b[\"B\"]:::hot",
		"    this line is nonsense",
		"    classDef hot fill:#f00",
		"```",
	}, "\n")
	got := Sanitize(in)
	want := strings.Join([]string{
		"graph TD",
		`    src/main.go_entry_["main #lpar;cli#rpar;"] --> pkg["pkg #lt;core#gt;"]`,
		"    subgraph api",
		`    a -->|calls| b["B"]:::hot`,
		"    classDef hot fill:#f00",
		"end",
	}, "\n")
	if got != want {
		t.Errorf("Sanitize:\n%s\nwant:\n%s", got, want)
	}
}

func TestSanitizeAddsHeaderAndChains(t *testing.T) {
	got := Sanitize("A[a b] --> B --> C[c]")
	want := "graph TD\nA[\"a b\"] --> B --> C[\"c\"]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

type scriptedRenderer struct {
	mu      sync.Mutex
	scripts []string
	fail    func(script string) bool
}

func (r *scriptedRenderer) Render(_ context.Context, script string) ([]byte, error) {
	r.mu.Lock()
	r.scripts = append(r.scripts, script)
	r.mu.Unlock()
	if r.fail != nil && r.fail(script) {
		return nil, errors.New("parse error")
	}
	return []byte(`<svg viewBox="0 0 100 50" style="max-width: 100px"><g></g></svg>`), nil
}

func TestRenderScriptRetriesSanitised(t *testing.T) {
	r := &scriptedRenderer{fail: func(s string) bool { return strings.Contains(s, "(") }}
	svg, err := RenderScript(context.Background(), r, "graph TD\nA[f(x)] --> B")
	if err != nil {
		t.Fatal(err)
	}
	if len(svg) == 0 || len(r.scripts) != 2 {
		t.Errorf("renders = %d", len(r.scripts))
	}
}

func TestRenderScriptKeepsOriginalError(t *testing.T) {
	r := &scriptedRenderer{fail: func(string) bool { return true }}
	_, err := RenderScript(context.Background(), r, "sequenceDiagram\nA->>B: hi")
	if err == nil || len(r.scripts) != 1 {
		t.Errorf("err = %v renders = %d", err, len(r.scripts))
	}
}

func TestStartDeliversMountableElement(t *testing.T) {
	r := &scriptedRenderer{}
	c := viewport.New(viewport.Options{})
	defer c.Close()

	var renderErr error
	attached := c.Mount(Elements(Start(context.Background(), r, "graph TD;A-->B"), func(err error) { renderErr = err }))
	select {
	case <-attached:
	case <-time.After(time.Second):
		t.Fatal("element never attached")
	}
	if renderErr != nil {
		t.Fatal(renderErr)
	}
	c.ZoomIn()
	svg := c.Element().(*viewport.SVG)
	out := string(svg.Bytes())
	if strings.Contains(out, "max-width") || !strings.Contains(out, `<g transform="translate(-25,-12.5) scale(1.5)">`) {
		t.Errorf("unexpected svg: %s", out)
	}
}

func TestStartFailureClosesWithoutElement(t *testing.T) {
	r := &scriptedRenderer{fail: func(string) bool { return true }}
	var (
		mu  sync.Mutex
		got error
	)
	els := Elements(Start(context.Background(), r, "pie\n\"a\": 1"), func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})
	if _, ok := <-els; ok {
		t.Fatal("element delivered for failed render")
	}
	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Error("render error not reported")
	}
}

func TestMermaidCLIMissingCommand(t *testing.T) {
	_, err := MermaidCLI{Command: "devcompass-no-such-renderer"}.Render(context.Background(), "graph TD;A-->B")
	if err == nil {
		t.Error("expected error for missing renderer")
	}
	if _, err := (MermaidCLI{}).Render(context.Background(), " "); !errors.Is(err, ErrEmptyScript) {
		t.Errorf("err = %v", err)
	}
}
