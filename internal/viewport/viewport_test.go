package viewport

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeGroup struct {
	mu     sync.Mutex
	writes []Transform
}

func (g *fakeGroup) SetTransform(t Transform) {
	g.mu.Lock()
	g.writes = append(g.writes, t)
	g.mu.Unlock()
}

func (g *fakeGroup) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.writes)
}

func (g *fakeGroup) last() Transform {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes[len(g.writes)-1]
}

type fakeElement struct {
	group    *fakeGroup
	stripped bool
	filled   bool
	extent   Extent
}

func (e *fakeElement) StripSizing()   { e.stripped = true }
func (e *fakeElement) FillContainer() { e.filled = true }
func (e *fakeElement) Extent() Extent { return e.extent }
func (e *fakeElement) Group() Group   { return e.group }

func newElement() *fakeElement {
	return &fakeElement{group: &fakeGroup{}, extent: Extent{Width: 800, Height: 600}}
}

func mount(t *testing.T, c *Controller, el Element) {
	t.Helper()
	ready := make(chan Element, 1)
	ready <- el
	select {
	case <-c.Mount(ready):
	case <-time.After(time.Second):
		t.Fatal("mount did not complete")
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOperationsBeforeMountAreNoOps(t *testing.T) {
	c := New(Options{})
	ready := make(chan Element)
	c.Mount(ready)

	c.ZoomIn()
	c.ZoomOut()
	c.Reset()
	c.Pan(10, 10)
	c.Wheel(1, 1, 2)

	if c.Transform() != Identity {
		t.Errorf("transform = %+v, want identity", c.Transform())
	}
	if c.Mounted() {
		t.Error("mounted before content arrived")
	}
	c.Close()
}

func TestMountPreparesElement(t *testing.T) {
	c := New(Options{})
	el := newElement()
	mount(t, c, el)

	if !el.stripped || !el.filled {
		t.Errorf("stripped=%v filled=%v", el.stripped, el.filled)
	}
	if el.group.count() != 1 || el.group.last() != Identity {
		t.Errorf("group writes = %v", el.group.writes)
	}
}

func TestZoomInThenOut(t *testing.T) {
	c := New(Options{})
	el := newElement()
	mount(t, c, el)

	c.ZoomIn()
	if k := c.Transform().K; k != 1.5 {
		t.Errorf("after zoom in k = %v", k)
	}
	c.ZoomOut()
	got := c.Transform()
	if got.K != 1.125 {
		t.Errorf("k = %v, want 1.125", got.K)
	}
	// The viewport centre stays put.
	x, y := got.Apply(400, 300)
	if !near(x, 400) || !near(y, 300) {
		t.Errorf("centre moved to (%v, %v)", x, y)
	}
	if el.group.last() != got {
		t.Errorf("group shows %+v, want %+v", el.group.last(), got)
	}
}

func TestZoomClamps(t *testing.T) {
	c := New(Options{})
	mount(t, c, newElement())

	for i := 0; i < 20; i++ {
		c.ZoomIn()
	}
	if k := c.Transform().K; k != MaxScale {
		t.Errorf("k = %v, want %v", k, MaxScale)
	}
	for i := 0; i < 40; i++ {
		c.ZoomOut()
	}
	if k := c.Transform().K; k != MinScale {
		t.Errorf("k = %v, want %v", k, MinScale)
	}
}

func TestResetIsExactIdentity(t *testing.T) {
	c := New(Options{})
	el := newElement()
	mount(t, c, el)

	c.ZoomIn()
	c.Pan(33.3, -12.1)
	c.Wheel(10, 20, 1.7)
	c.Reset()
	if c.Transform() != Identity {
		t.Errorf("transform = %+v", c.Transform())
	}
	if el.group.last() != Identity {
		t.Errorf("group shows %+v", el.group.last())
	}
}

func TestAnimatedZoom(t *testing.T) {
	var mu sync.Mutex
	var frames []Transform
	c := New(Options{
		Duration:      40 * time.Millisecond,
		FrameInterval: 2 * time.Millisecond,
		OnFrame: func(t Transform) {
			mu.Lock()
			frames = append(frames, t)
			mu.Unlock()
		},
	})
	el := newElement()
	mount(t, c, el)

	c.ZoomIn()
	if k := c.Transform().K; k != 1.5 {
		t.Errorf("logical k = %v, want 1.5 immediately", k)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Shown() != c.Transform() {
		t.Errorf("shown %+v, want %+v", c.Shown(), c.Transform())
	}
	mu.Lock()
	n := len(frames)
	mu.Unlock()
	if n < 3 {
		t.Errorf("only %d frames", n)
	}
}

func TestNewAnimationSupersedesOld(t *testing.T) {
	c := New(Options{Duration: time.Hour, FrameInterval: time.Millisecond})
	el := newElement()
	mount(t, c, el)

	c.ZoomIn()
	c.Reset()
	if c.Transform() != Identity {
		t.Errorf("transform = %+v", c.Transform())
	}
	c.Pan(5, 5)
	if c.Transform().K != c.Shown().K {
		t.Errorf("pan did not stop the animation")
	}
	c.Close()
}

func TestRemountDiscardsState(t *testing.T) {
	c := New(Options{})
	first := newElement()
	mount(t, c, first)
	c.ZoomIn()

	pending := make(chan Element)
	c.Mount(pending)
	if c.Mounted() {
		t.Error("old element still attached after remount")
	}
	if c.Transform() != Identity {
		t.Errorf("transform = %+v, want identity", c.Transform())
	}
	writes := first.group.count()
	c.ZoomIn()
	if first.group.count() != writes {
		t.Error("detached element was written to")
	}

	second := newElement()
	mount(t, c, second)
	c.ZoomOut()
	if first.group.count() != writes {
		t.Error("detached element was written to")
	}
	if c.Transform().K != 0.75 {
		t.Errorf("k = %v", c.Transform().K)
	}
	// The superseded mount never attaches.
	pending <- newElement()
	if c.Element() != Element(second) {
		t.Error("superseded mount replaced the element")
	}
}

func TestTransformString(t *testing.T) {
	got := Transform{X: 12.5, Y: -3, K: 1.125}.String()
	if got != "translate(12.5,-3) scale(1.125)" {
		t.Errorf("got %q", got)
	}
}

const mermaidSVG = `<svg id="mermaid-1" width="100%" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" style="max-width: 312px;" viewBox="-8 -8 312 200" role="graphics-document document"><style>#mermaid-1{font-family:sans-serif;}</style><g><marker id="arrow"/><g class="nodes"><g class="node"><rect width="10" height="10"/></g></g></g></svg>`

func TestParseSVG(t *testing.T) {
	svg, err := ParseSVG([]byte(mermaidSVG))
	if err != nil {
		t.Fatal(err)
	}
	if e := svg.Extent(); e.Width != 312 || e.Height != 200 {
		t.Errorf("extent = %+v", e)
	}

	c := New(Options{})
	mount(t, c, svg)
	c.ZoomIn()

	out := string(svg.Bytes())
	if strings.Contains(out, "max-width") {
		t.Error("inline style kept")
	}
	if !strings.Contains(out, `height="100%"`) {
		t.Error("height not set")
	}
	want := `<g transform="translate(-78,-50) scale(1.5)">`
	if !strings.Contains(out, want) {
		t.Errorf("first group not transformed:\n%s", out)
	}
	if strings.Count(out, "transform=") != 1 {
		t.Error("transform written to more than one element")
	}
	if !strings.Contains(out, `<style>#mermaid-1{font-family:sans-serif;}</style>`) {
		t.Error("document body changed")
	}
	if !strings.HasSuffix(out, `<rect width="10" height="10"/></g></g></g></svg>`) {
		t.Errorf("tail changed: %s", out)
	}
	if svg.GroupTransform() != "translate(-78,-50) scale(1.5)" {
		t.Errorf("GroupTransform = %q", svg.GroupTransform())
	}
}

func TestParseSVGWithoutGroup(t *testing.T) {
	svg, err := ParseSVG([]byte(`<?xml version="1.0"?><svg width="40" height="30px"><rect/></svg>`))
	if err != nil {
		t.Fatal(err)
	}
	if svg.Group() != nil {
		t.Error("expected no group")
	}
	if e := svg.Extent(); e.Width != 40 || e.Height != 30 {
		t.Errorf("extent = %+v", e)
	}
	c := New(Options{})
	mount(t, c, svg)
	c.ZoomIn()
	if !strings.HasPrefix(string(svg.Bytes()), `<?xml version="1.0"?><svg width="100%" height="100%">`) {
		t.Errorf("got %s", svg.Bytes())
	}
}

func TestParseSVGRejectsOtherRoots(t *testing.T) {
	if _, err := ParseSVG([]byte(`<html><body/></html>`)); err == nil {
		t.Error("expected error")
	}
	if _, err := ParseSVG([]byte(``)); err == nil {
		t.Error("expected error for empty input")
	}
}
