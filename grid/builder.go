package grid

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

var ErrDegenerateAxis = errors.New("degenerate grid axis")

// Flags are the per axis boundary flags of the source run parameters, ordered x, y, z.
type Flags struct {
	Periodic         [3]bool
	ShiftOrigin      [3]bool
	ShiftOriginLower [3]bool
	Equidistant      [3]bool
}

// DefaultFlags describes a periodic equidistant box without origin shifts.
func DefaultFlags() Flags {
	return Flags{
		Periodic:    [3]bool{true, true, true},
		Equidistant: [3]bool{true, true, true},
	}
}

type Options struct {
	Mult, Frac         [3]int // the interior count becomes n*Mult/Frac
	SrcGhost, DstGhost int
	Symmetric          bool   // centre a non-periodic grid on the source domain
	Ncpus              [3]int // [1,1,1] keeps the source layout
	Precision          Precision
}

func DefaultOptions() Options {
	return Options{
		Mult:      [3]int{2, 2, 2},
		Frac:      [3]int{1, 1, 1},
		SrcGhost:  3,
		DstGhost:  3,
		Symmetric: true,
		Ncpus:     [3]int{1, 1, 1},
		Precision: Double,
	}
}

// TargetN returns the destination interior counts for source interior counts n.
func (o Options) TargetN(n [3]int) (nDst [3]int) {
	for i := range n {
		nDst[i] = n[i] * o.Mult[i] / o.Frac[i]
	}
	return
}

// BuildSettings copies the source settings and replaces the mesh dependent records for the destination mesh.
func BuildSettings(src Settings, opts Options) (dst Settings) {
	dst = src.Copy()
	dst.Precision = opts.Precision
	dst.SetMesh(opts.TargetN(src.N()), opts.DstGhost)
	if opts.Ncpus != [3]int{1, 1, 1} {
		dst.SetNproc(opts.Ncpus)
	}
	return
}

// BuildAxis reconstructs one destination axis with nDst interior cells from the source axis. dim selects the
// boundary flags (0 = x, 1 = y, 2 = z).
func BuildAxis(src Axis, dim, nDst int, flags Flags, opts Options) (dst Axis, err error) {
	var (
		gs   = opts.SrcGhost
		gd   = opts.DstGhost
		mSrc = src.M()
		mDst = nDst + 2*gd
	)
	if nDst == mSrc-2*gs && gd == gs {
		dst = src.Copy()
		return
	}
	if nDst < 2 {
		err = fmt.Errorf("axis %s: %d interior cells cannot be rebuilt: %w", src.Name, nDst, ErrDegenerateAxis)
		return
	}
	if mSrc < 2*gs+1 {
		err = fmt.Errorf("axis %s: %d source cells with %d ghosts: %w", src.Name, mSrc, gs, ErrDegenerateAxis)
		return
	}
	var (
		lower = src.Coord[gs]
		upper = src.Coord[mSrc-1-gs]
		d     = (upper - lower) / float64(nDst-1)
	)
	if !(d > 0) {
		err = fmt.Errorf("axis %s: spacing %g from source interior [%g, %g]: %w",
			src.Name, d, lower, upper, ErrDegenerateAxis)
		return
	}
	dst = Axis{
		Name:  src.Name,
		Coord: make([]float64, mDst),
		D:     d,
		L:     src.L,
		O:     src.O,
	}
	interior := dst.Coord[gd : gd+nDst]
	floats.Span(interior, lower-d, upper)
	switch {
	case opts.Symmetric || flags.ShiftOrigin[dim]:
		floats.AddConst(0.5*d, interior)
	case flags.ShiftOriginLower[dim]:
		floats.AddConst(-0.5*d, interior)
	}
	for j := 0; j < gd; j++ {
		dst.Coord[gd-1-j] = dst.Coord[gd] - float64(j+1)*d
		dst.Coord[mDst-gd+j] = dst.Coord[mDst-gd-1] + float64(j+1)*d
	}
	if !flags.Periodic[dim] {
		dst.L = src.L + d
		dst.O = src.O - 0.5*d
	}
	prec := opts.Precision
	prec.RoundSlice(dst.Coord)
	dst.D, dst.L, dst.O = prec.Round(dst.D), prec.Round(dst.L), prec.Round(dst.O)
	dst.Derive(prec)
	return
}

// Build derives the destination settings and grid from the source snapshot. Non-equidistant source axes are
// rebuilt as equidistant after a warning.
func Build(src Grid, srcSets Settings, flags Flags, opts Options, log logrus.FieldLogger) (dst Grid, dstSets Settings, err error) {
	dstSets = BuildSettings(srcSets, opts)
	nDst := dstSets.N()
	for dim := range src.Axes {
		if !flags.Equidistant[dim] {
			log.WithField("axis", AxisNames[dim]).Warn(
				"non-equidistant grid not implemented, continuing with equidistant grid")
		}
		if dst.Axes[dim], err = BuildAxis(src.Axes[dim], dim, nDst[dim], flags, opts); err != nil {
			return
		}
		if dst.Axes[dim].M() != src.Axes[dim].M() || nDst[dim] != srcSets.N()[dim] {
			log.WithFields(logrus.Fields{
				"axis":    AxisNames[dim],
				"lower":   src.Axes[dim].Coord[opts.SrcGhost],
				"upper":   src.Axes[dim].Coord[src.Axes[dim].M()-1-opts.SrcGhost],
				"spacing": dst.Axes[dim].D,
				"n":       nDst[dim],
			}).Debug("rebuilt axis")
		}
	}
	return
}
