package frontend

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"

	"github.com/ziadkadry99/devcompass/internal/diagrams"
	"github.com/ziadkadry99/devcompass/internal/session"
	"github.com/ziadkadry99/devcompass/internal/viewport"
)

// diagramState tracks the diagram mounted for one repository.
type diagramState struct {
	id       session.Identity
	attached <-chan struct{}
	err      string
}

type fileTreeData struct {
	Loading bool
	Error   string
	SVG     template.HTML
}

func (f *Frontend) handleFileTree(w http.ResponseWriter, r *http.Request) {
	id := f.gate.Identity()
	st := f.loadDiagram(r.Context(), id)

	data := fileTreeData{}
	if st.attached != nil {
		ctx, cancel := context.WithTimeout(r.Context(), f.wait)
		select {
		case <-st.attached:
		case <-ctx.Done():
		}
		cancel()
	}

	f.mu.Lock()
	data.Error = st.err
	if f.diagram != nil && f.diagram.id == id {
		data.Error = f.diagram.err
	}
	f.mu.Unlock()

	if svg, ok := f.view.Element().(*viewport.SVG); ok && data.Error == "" {
		data.SVG = template.HTML(svg.Bytes())
	} else if data.Error == "" {
		data.Loading = true
	}
	f.render(w, "file-tree", "File Structure", data)
}

// loadDiagram fetches and starts rendering the diagram of id unless it is
// already mounted. Mounting a new diagram discards the previous viewport.
func (f *Frontend) loadDiagram(ctx context.Context, id session.Identity) diagramState {
	f.mu.Lock()
	if d := f.diagram; d != nil && d.id == id && d.err == "" {
		st := *d
		f.mu.Unlock()
		return st
	}
	f.mu.Unlock()

	if id.IsZero() {
		return f.setDiagram(diagramState{err: "No repository selected."})
	}

	graph, err := f.client.Diagram(ctx, string(id))
	if err != nil {
		log.Printf("frontend: fetching diagram for %s: %v", id, err)
		return f.setDiagram(diagramState{id: id, err: detailOr(err, "Failed to fetch diagram")})
	}
	script, err := diagrams.Prepare(graph)
	if err != nil {
		return f.setDiagram(diagramState{id: id, err: "No diagram available for this repository."})
	}

	onErr := func(err error) {
		log.Printf("frontend: rendering diagram for %s: %v", id, err)
		f.mu.Lock()
		if f.diagram != nil && f.diagram.id == id {
			f.diagram.err = renderErrorText(err)
		}
		f.mu.Unlock()
	}
	results := diagrams.Start(f.ctx, f.renderer, script)
	attached := f.view.Mount(diagrams.Elements(results, onErr))
	return f.setDiagram(diagramState{id: id, attached: attached})
}

func (f *Frontend) setDiagram(st diagramState) diagramState {
	f.mu.Lock()
	f.diagram = &st
	f.mu.Unlock()
	return st
}

func renderErrorText(err error) string {
	if errors.Is(err, diagrams.ErrEmptyScript) {
		return "No diagram available for this repository."
	}
	return "Failed to render diagram."
}

func (f *Frontend) handleZoom(w http.ResponseWriter, r *http.Request) {
	f.applyViewport(viewportRequest{Op: r.FormValue("op")})
	http.Redirect(w, r, "/file-tree", http.StatusSeeOther)
}

func (f *Frontend) applyViewport(req viewportRequest) {
	switch req.Op {
	case "in":
		f.view.ZoomIn()
	case "out":
		f.view.ZoomOut()
	case "reset":
		f.view.Reset()
	case "pan":
		f.view.Pan(req.X, req.Y)
	case "wheel":
		f.view.Wheel(req.X, req.Y, req.Factor)
	default:
		log.Printf("frontend: unknown viewport op %q", req.Op)
	}
}

// publishTransform runs under the controller's lock and must not call back
// into it.
func (f *Frontend) publishTransform(t viewport.Transform) {
	f.hub.publish(topicViewport, event{Type: "transform", Transform: t.String()})
}
