package types

import "fmt"

// Range is the half open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

func NewRange(lo, hi int) Range { return Range{Lo: lo, Hi: hi} }

func (r Range) Len() int { return r.Hi - r.Lo }

// Within reports whether r is a non-empty interval inside [0, max).
func (r Range) Within(max int) bool {
	return r.Lo >= 0 && r.Hi <= max && r.Lo < r.Hi
}

func (r Range) String() string { return fmt.Sprintf("[%d:%d]", r.Lo, r.Hi) }

// Window selects a rectangular block of a Field3D, ordered (z, y, x) like the field itself.
type Window struct {
	Z, Y, X Range
}

func FullWindow(mz, my, mx int) Window {
	return Window{Z: NewRange(0, mz), Y: NewRange(0, my), X: NewRange(0, mx)}
}

func (w Window) Shape() [3]int { return [3]int{w.Z.Len(), w.Y.Len(), w.X.Len()} }

func (w Window) Size() int { return w.Z.Len() * w.Y.Len() * w.X.Len() }
