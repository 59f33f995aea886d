package humanizer

import (
	"math"
	"time"
)

type Point struct {
	X, Y float64
}

// Viewport bounds every generated coordinate to [0,Width]x[0,Height].
type Viewport struct {
	Width, Height int
}

func (v Viewport) clamp(p Point) Point {
	return Point{
		X: math.Max(0, math.Min(p.X, float64(v.Width))),
		Y: math.Max(0, math.Min(p.Y, float64(v.Height))),
	}
}

// PathStep is one pointer position and the wait before moving to it.
type PathStep struct {
	Point Point
	Delay time.Duration
}

const (
	controlOffset = 120.0
	pointerJitter = 2.0
)

// smoothstep eases t so velocity is lowest at both ends.
func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// PointerPath approximates a quadratic Bézier curve from start to end whose
// control point is offset randomly from the midpoint. The final step lands on
// end (clamped).
func (h *Humanizer) PointerPath(start, end Point, vp Viewport) []PathStep {
	start, end = vp.clamp(start), vp.clamp(end)
	ctrl := Point{
		X: (start.X+end.X)/2 + h.float(-controlOffset, controlOffset),
		Y: (start.Y+end.Y)/2 + h.float(-controlOffset, controlOffset),
	}

	n := h.IntBetween(15, 35)
	path := make([]PathStep, 0, n)
	for i := 1; i <= n; i++ {
		e := smoothstep(float64(i) / float64(n))
		u := 1 - e
		p := Point{
			X: u*u*start.X + 2*u*e*ctrl.X + e*e*end.X,
			Y: u*u*start.Y + 2*u*e*ctrl.Y + e*e*end.Y,
		}
		if i < n {
			p.X += h.float(-pointerJitter, pointerJitter)
			p.Y += h.float(-pointerJitter, pointerJitter)
		}

		// 1.5x at the ends, 0.5x at the midpoint
		scale := 0.5 + math.Abs(2*e-1)
		base := h.Duration(ms(8), ms(25))
		path = append(path, PathStep{
			Point: vp.clamp(p),
			Delay: time.Duration(float64(base) * scale),
		})
	}
	return path
}
