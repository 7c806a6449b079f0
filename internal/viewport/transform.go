// Package viewport keeps the pan and zoom state of a rendered diagram.
package viewport

import (
	"fmt"
	"math"
)

// Scale limits and the factors used by the zoom buttons.
const (
	MinScale      = 0.1
	MaxScale      = 4.0
	ZoomInFactor  = 1.5
	ZoomOutFactor = 0.75
)

// Transform is a translate-then-scale applied to the diagram group.
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// ScaleAround multiplies the scale by factor, keeping the point (cx, cy)
// fixed on screen. The resulting scale is clamped to [MinScale, MaxScale].
func (t Transform) ScaleAround(factor, cx, cy float64) Transform {
	k := clampScale(t.K * factor)
	if t.K == 0 {
		return Transform{X: t.X, Y: t.Y, K: k}
	}
	r := k / t.K
	return Transform{
		X: cx - (cx-t.X)*r,
		Y: cy - (cy-t.Y)*r,
		K: k,
	}
}

// Translate shifts the view by (dx, dy) screen units.
func (t Transform) Translate(dx, dy float64) Transform {
	return Transform{X: t.X + dx, Y: t.Y + dy, K: t.K}
}

// Apply maps a diagram point to screen coordinates.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// String renders t as an SVG transform attribute value.
func (t Transform) String() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)", num(t.X), num(t.Y), num(t.K))
}

func num(v float64) string {
	return fmt.Sprintf("%g", math.Round(v*1e6)/1e6)
}

func clampScale(k float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// interpolate returns the transform at fraction p of the way from a to b.
func interpolate(a, b Transform, p float64) Transform {
	if p >= 1 {
		return b
	}
	return Transform{
		X: a.X + (b.X-a.X)*p,
		Y: a.Y + (b.Y-a.Y)*p,
		K: a.K + (b.K-a.K)*p,
	}
}

// easeCubicInOut matches the default easing of browser zoom transitions.
func easeCubicInOut(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	q := 2*p - 2
	return 1 + q*q*q/2
}
