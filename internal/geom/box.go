// Package geom provides the pixel-space bounding box primitives and the
// pinhole-camera distance estimation used by the tracking pipeline.
package geom

// Box is an axis-aligned bounding box in pixel space.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Area returns the box area in square pixels, or 0 for degenerate boxes.
func (b Box) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Center returns the box centre point.
func (b Box) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Intersect returns the overlapping area between two boxes, or 0 when they
// are disjoint or either box is degenerate.
func (b Box) Intersect(o Box) float64 {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.Width, o.X+o.Width)
	y2 := min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU returns the intersection-over-union ratio between two boxes in [0, 1].
// Disjoint or degenerate boxes score 0; identical boxes score 1.
func (b Box) IoU(o Box) float64 {
	inter := b.Intersect(o)
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
