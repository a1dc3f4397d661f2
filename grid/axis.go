package grid

import (
	"fmt"

	"github.com/notargets/remesh/utils"
)

var AxisNames = [3]string{"x", "y", "z"}

// Axis holds the coordinates of one spatial direction including ghost cells, and the derived arrays the solver
// reads back from the grid group.
type Axis struct {
	Name   string
	Coord  []float64 // length m
	D      float64   // spacing
	D1     []float64 // 1/gradient(Coord)
	DTilde []float64 // gradient(D1)
	L, O   float64   // domain length and origin
}

func (a Axis) M() int { return len(a.Coord) }

func (a Axis) Copy() (r Axis) {
	r = a
	r.Coord = append([]float64(nil), a.Coord...)
	r.D1 = append([]float64(nil), a.D1...)
	r.DTilde = append([]float64(nil), a.DTilde...)
	return
}

// Derive recomputes D1 and DTilde from Coord.
func (a *Axis) Derive(prec Precision) {
	a.D1 = prec.RoundSlice(utils.Reciprocal(utils.Gradient(nil, a.Coord)))
	a.DTilde = prec.RoundSlice(utils.Gradient(nil, a.D1))
}

// Validate checks that the coordinates are strictly increasing.
func (a Axis) Validate() error {
	for i := 1; i < len(a.Coord); i++ {
		if !(a.Coord[i] > a.Coord[i-1]) {
			return fmt.Errorf("axis %s: coordinate %d (%g) not above coordinate %d (%g): %w",
				a.Name, i, a.Coord[i], i-1, a.Coord[i-1], ErrDegenerateAxis)
		}
	}
	return nil
}

// Grid is the set of x, y, z axes of one snapshot.
type Grid struct {
	Axes [3]Axis
}

func (g Grid) Coords() (c [3][]float64) {
	for n := range g.Axes {
		c[n] = g.Axes[n].Coord
	}
	return
}

func (g Grid) Copy() (r Grid) {
	for n := range g.Axes {
		r.Axes[n] = g.Axes[n].Copy()
	}
	return
}

// Uniform returns a cell centred axis of n interior cells spanning [origin, origin+length), extended by ghost cells
// on both ends.
func Uniform(name string, n, ghost int, origin, length float64) (a Axis) {
	var (
		d = length / float64(n)
		m = n + 2*ghost
	)
	a = Axis{
		Name:  name,
		Coord: make([]float64, m),
		D:     d,
		L:     length,
		O:     origin,
	}
	for i := range a.Coord {
		a.Coord[i] = origin + (float64(i-ghost)+0.5)*d
	}
	a.Derive(Double)
	return
}
