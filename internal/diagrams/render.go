package diagrams

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ziadkadry99/devcompass/internal/viewport"
)

// Renderer turns a diagram script into an SVG document.
type Renderer interface {
	Render(ctx context.Context, script string) ([]byte, error)
}

// ErrEmptyScript is returned when there is nothing to render.
var ErrEmptyScript = errors.New("diagram script is empty")

// MermaidCLI renders with the mermaid command line tool (mmdc).
type MermaidCLI struct {
	// Command is the executable, "mmdc" if empty.
	Command string
	// Args are extra arguments, e.g. a puppeteer config.
	Args []string
}

// Render writes script to a temporary file, runs the tool and reads the SVG
// it produced.
func (m MermaidCLI) Render(ctx context.Context, script string) ([]byte, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrEmptyScript
	}
	command := m.Command
	if command == "" {
		command = "mmdc"
	}

	dir, err := os.MkdirTemp("", "devcompass-diagram-")
	if err != nil {
		return nil, fmt.Errorf("creating render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "diagram.mmd")
	out := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(in, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("writing diagram script: %w", err)
	}

	args := append([]string{"-i", in, "-o", out, "-b", "transparent"}, m.Args...)
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("running %s: %w", command, err)
		}
		return nil, fmt.Errorf("running %s: %w: %s", command, err, msg)
	}

	svg, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("reading rendered diagram: %w", err)
	}
	return svg, nil
}

// Prepare turns a backend graph script into the script to render.
func Prepare(graphScript string) (string, error) {
	script := StripFence(graphScript)
	if script == "" {
		return "", ErrEmptyScript
	}
	return script, nil
}

// RenderScript renders script, retrying once with a sanitised copy when a
// flowchart is rejected.
func RenderScript(ctx context.Context, r Renderer, script string) ([]byte, error) {
	svg, err := r.Render(ctx, script)
	if err == nil || ctx.Err() != nil || !IsFlowchart(script) {
		return svg, err
	}
	fixed := Sanitize(script)
	if fixed == script {
		return nil, err
	}
	log.Printf("diagrams: render failed, retrying sanitised script: %v", err)
	svg, err2 := r.Render(ctx, fixed)
	if err2 != nil {
		return nil, err
	}
	return svg, nil
}

// Result is the outcome of an asynchronous render.
type Result struct {
	SVG *viewport.SVG
	Err error
}

// Start renders script in the background. The returned channel delivers
// exactly one Result and is then closed.
func Start(ctx context.Context, r Renderer, script string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		data, err := RenderScript(ctx, r, script)
		if err != nil {
			ch <- Result{Err: err}
			return
		}
		svg, err := viewport.ParseSVG(data)
		ch <- Result{SVG: svg, Err: err}
	}()
	return ch
}

// Elements adapts a render future to the one-shot element channel a
// viewport controller mounts from. Failed renders close the channel
// without delivering anything; their error is passed to onErr.
func Elements(results <-chan Result, onErr func(error)) <-chan viewport.Element {
	ch := make(chan viewport.Element, 1)
	go func() {
		defer close(ch)
		res, ok := <-results
		if !ok {
			return
		}
		if res.Err != nil {
			if onErr != nil {
				onErr(res.Err)
			}
			return
		}
		ch <- res.SVG
	}()
	return ch
}
