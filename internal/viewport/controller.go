package viewport

import (
	"context"
	"sync"
	"time"
)

// Extent is the size of the drawing area in diagram units.
type Extent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the extent.
func (e Extent) Center() (float64, float64) { return e.Width / 2, e.Height / 2 }

// Element is rendered diagram content the controller can take over.
type Element interface {
	// StripSizing removes fixed sizing the renderer put on the root.
	StripSizing()
	// FillContainer makes the root fill its container.
	FillContainer()
	// Extent reports the drawing area.
	Extent() Extent
	// Group returns the child that receives transforms, or nil if there is none.
	Group() Group
}

// Group is the part of an Element that is moved and scaled.
type Group interface {
	SetTransform(Transform)
}

// Options configure a Controller.
type Options struct {
	// Duration of zoom and reset animations. Zero applies them at once.
	Duration time.Duration
	// FrameInterval between animation frames. Defaults to 16ms.
	FrameInterval time.Duration
	// OnFrame, if set, sees every transform written to the group.
	OnFrame func(Transform)
}

// DefaultDuration is the zoom animation length.
const DefaultDuration = 750 * time.Millisecond

// Controller owns the zoom state of one mounted element. Operations before
// an element is mounted do nothing.
type Controller struct {
	opts Options

	mu     sync.Mutex
	gen    uint64
	el     Element
	group  Group
	extent Extent
	target Transform
	shown  Transform
	anim   *animation
	closed bool
}

type animation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a controller with nothing mounted.
func New(opts Options) *Controller {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.Duration < 0 {
		opts.Duration = 0
	}
	return &Controller{opts: opts, target: Identity, shown: Identity}
}

// Mount detaches any current element and takes over the one delivered on
// ready. The returned channel is closed once that element is attached, or
// once the mount is superseded by another Mount or Close.
func (c *Controller) Mount(ready <-chan Element) <-chan struct{} {
	c.mu.Lock()
	c.detachLocked()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	attached := make(chan struct{})
	go func() {
		defer close(attached)
		el, ok := <-ready
		if !ok || el == nil {
			return
		}
		c.attach(gen, el)
	}()
	return attached
}

// Mounted reports whether an element is attached.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el != nil
}

// Element returns the attached element, or nil.
func (c *Controller) Element() Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el
}

func (c *Controller) attach(gen uint64, el Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	// Read the extent before sizing attributes are rewritten.
	c.extent = el.Extent()
	el.StripSizing()
	el.FillContainer()
	c.el = el
	c.group = el.Group()
	c.target, c.shown = Identity, Identity
	c.writeLocked(Identity)
}

func (c *Controller) detachLocked() {
	c.stopLocked()
	c.el, c.group = nil, nil
	c.extent = Extent{}
	c.target, c.shown = Identity, Identity
}

// Transform returns the logical transform. During an animation this is
// already the end state.
func (c *Controller) Transform() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Shown returns the transform currently written to the element.
func (c *Controller) Shown() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

// ZoomIn scales up around the viewport centre.
func (c *Controller) ZoomIn() { c.zoomBy(ZoomInFactor) }

// ZoomOut scales down around the viewport centre.
func (c *Controller) ZoomOut() { c.zoomBy(ZoomOutFactor) }

func (c *Controller) zoomBy(factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el == nil {
		return
	}
	cx, cy := c.extent.Center()
	c.animateLocked(c.target.ScaleAround(factor, cx, cy))
}

// Reset animates back to the identity transform.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el == nil {
		return
	}
	c.animateLocked(Identity)
}

// Pan moves the view immediately, cancelling any animation.
func (c *Controller) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el == nil {
		return
	}
	c.stopLocked()
	c.target = c.shown.Translate(dx, dy)
	c.writeLocked(c.target)
}

// Wheel zooms by factor around the pointer at (x, y), immediately.
func (c *Controller) Wheel(x, y, factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el == nil || factor <= 0 {
		return
	}
	c.stopLocked()
	c.target = c.shown.ScaleAround(factor, x, y)
	c.writeLocked(c.target)
}

// Wait blocks until the running animation, if any, has finished or ctx is
// done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	a := c.anim
	c.mu.Unlock()
	if a == nil {
		return nil
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops animations and detaches the element. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	c.detachLocked()
}

func (c *Controller) stopLocked() {
	if c.anim != nil {
		c.anim.cancel()
		c.anim = nil
	}
}

func (c *Controller) writeLocked(t Transform) {
	c.shown = t
	if c.group != nil {
		c.group.SetTransform(t)
	}
	if c.opts.OnFrame != nil {
		c.opts.OnFrame(t)
	}
}

// animateLocked sets the logical transform to to and moves the shown
// transform there over the configured duration. A running animation is
// superseded and continues from wherever it had got to.
func (c *Controller) animateLocked(to Transform) {
	c.stopLocked()
	c.target = to
	if c.opts.Duration == 0 {
		c.writeLocked(to)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &animation{cancel: cancel, done: make(chan struct{})}
	c.anim = a
	from := c.shown
	gen := c.gen

	go func() {
		defer close(a.done)
		defer cancel()
		ticker := time.NewTicker(c.opts.FrameInterval)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				p := float64(now.Sub(start)) / float64(c.opts.Duration)
				if p > 1 {
					p = 1
				}
				if !c.frame(ctx, gen, interpolate(from, to, easeCubicInOut(p))) || p >= 1 {
					c.finish(a)
					return
				}
			}
		}
	}()
}

// frame writes one animation step unless the animation was superseded.
func (c *Controller) frame(ctx context.Context, gen uint64, t Transform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil || gen != c.gen {
		return false
	}
	c.writeLocked(t)
	return true
}

func (c *Controller) finish(a *animation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anim == a {
		c.anim = nil
	}
}
