package chunk

import (
	"fmt"

	"github.com/notargets/remesh/decomp"
	"github.com/notargets/remesh/interp"
	"github.com/notargets/remesh/types"
	"github.com/notargets/remesh/utils"
)

// NeedsChunks reports whether a double precision field of interior size n exceeds threshold bytes.
func NeedsChunks(n [3]int, threshold int64) bool {
	return 8*int64(n[0])*int64(n[1])*int64(n[2]) > threshold
}

// Counts returns the number of chunks per axis: the largest near cubic split whose chunks still hold at least
// threshold bytes of one variable.
func Counts(n [3]int, threshold int64, nmin int) (counts [3]int) {
	_, counts = decomp.Optimal(n[0], n[1], n[2], decomp.Options{
		Mvar:  1,
		Nmin:  nmin,
		MBmin: float64(threshold) / decomp.MiB,
	})
	return
}

// AxisWindow holds the index windows of one chunk along one axis.
type AxisWindow struct {
	Lo, Hi       int // destination sites read, inclusive
	SrcLo, SrcHi int // source sites bracketing [Lo, Hi], or [Lo, Hi] itself on a kept axis, inclusive
	OutLo, OutHi int // destination sites written, half open
	VarLo, VarHi int // slice of the chunk result written to [OutLo, OutHi), half open
}

func (w AxisWindow) Dst() types.Range { return types.NewRange(w.Lo, w.Hi+1) }
func (w AxisWindow) Src() types.Range { return types.NewRange(w.SrcLo, w.SrcHi+1) }
func (w AxisWindow) Out() types.Range { return types.NewRange(w.OutLo, w.OutHi) }
func (w AxisWindow) Var() types.Range { return types.NewRange(w.VarLo, w.VarHi) }

// Chunk is one block of the destination mesh. Axes and Index are ordered x, y, z.
type Chunk struct {
	Index [3]int
	Axes  [3]AxisWindow
}

func (c Chunk) String() string {
	return fmt.Sprintf("[%d %d %d]", c.Index[2], c.Index[1], c.Index[0])
}

func (c Chunk) window(r func(AxisWindow) types.Range) types.Window {
	return types.Window{Z: r(c.Axes[2]), Y: r(c.Axes[1]), X: r(c.Axes[0])}
}

func (c Chunk) SrcWindow() types.Window { return c.window(AxisWindow.Src) }
func (c Chunk) DstWindow() types.Window { return c.window(AxisWindow.Dst) }
func (c Chunk) OutWindow() types.Window { return c.window(AxisWindow.Out) }
func (c Chunk) VarWindow() types.Window { return c.window(AxisWindow.Var) }

// Coords slices the source and destination coordinates read by the chunk.
func (c Chunk) Coords(src, dst [3][]float64) (srcC, dstC [3][]float64) {
	for a, w := range c.Axes {
		srcC[a] = src[a][w.SrcLo : w.SrcHi+1]
		dstC[a] = dst[a][w.Lo : w.Hi+1]
	}
	return
}

// Resample interpolates block, the source field restricted to SrcWindow, onto the chunk's destination sites and
// returns the part to be written at OutWindow. src and dst are the full coordinates: an axis is resampled only
// when its full counts differ, as in interp.Remesh, so chunks reproduce the whole array result.
func (c Chunk) Resample(block types.Field3D, src, dst [3][]float64) types.Field3D {
	srcC, dstC := c.Coords(src, dst)
	return interp.Resample(block, srcC, dstC, interp.Changed(src, dst)).Window(c.VarWindow())
}

// AxisWindows splits the interior [ghost, ghost+n) of one destination axis into count groups and derives the
// windows of each group. src and dst are the full source and destination coordinates. An axis with as many source
// as destination sites is not resampled, so its source window is the destination window.
func AxisWindows(src, dst []float64, n, ghost, count int) (ws []AxisWindow) {
	var (
		m      = len(dst)
		groups = utils.NewPartitionMap(count, n).Groups(ghost)
	)
	ws = make([]AxisWindow, len(groups))
	for i, g := range groups {
		w := AxisWindow{
			Lo:    g[0] - ghost,
			Hi:    g[1] + ghost,
			OutLo: g[0],
			OutHi: g[1] + 1,
			VarLo: ghost,
		}
		w.VarHi = w.Hi - w.Lo + 1 - ghost
		if len(src) == m {
			w.SrcLo, w.SrcHi = w.Lo, w.Hi
		} else {
			w.SrcLo, w.SrcHi = bracket(src, dst[w.Lo], dst[w.Hi])
		}
		if i == 0 {
			w.OutLo, w.VarLo = 0, 0
		}
		if i == len(groups)-1 {
			w.OutHi = m
			w.VarHi = w.Hi - w.Lo + 1
		}
		ws[i] = w
	}
	return
}

// bracket returns the last source site strictly below lo and the first strictly above hi, clamped to the ends
// of src when the destination reaches beyond it.
func bracket(src []float64, lo, hi float64) (jLo, jHi int) {
	jLo, jHi = 0, len(src)-1
	for j := range src {
		if src[j] < lo {
			jLo = j
		}
	}
	for j := len(src) - 1; j >= 0; j-- {
		if src[j] > hi {
			jHi = j
		}
	}
	return
}

// Plan returns the chunks of the destination mesh with interior counts n and ghost width ghost, split counts[a]
// ways along axis a, in z major order.
func Plan(src, dst [3][]float64, n [3]int, ghost int, counts [3]int) (chunks []Chunk) {
	var ws [3][]AxisWindow
	for a := range ws {
		if len(dst[a]) != n[a]+2*ghost {
			panic(fmt.Errorf("axis %d: %d destination sites for %d interior cells with %d ghosts",
				a, len(dst[a]), n[a], ghost))
		}
		ws[a] = AxisWindows(src[a], dst[a], n[a], ghost, counts[a])
	}
	for iz, wz := range ws[2] {
		for iy, wy := range ws[1] {
			for ix, wx := range ws[0] {
				chunks = append(chunks, Chunk{
					Index: [3]int{ix, iy, iz},
					Axes:  [3]AxisWindow{wx, wy, wz},
				})
			}
		}
	}
	return
}
