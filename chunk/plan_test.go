package chunk

import (
	"math"
	"testing"

	"github.com/notargets/remesh/grid"
	"github.com/notargets/remesh/interp"
	"github.com/notargets/remesh/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubledGrids(t *testing.T, n [3]int) (src, dst [3][]float64, nDst [3]int) {
	opts := grid.DefaultOptions()
	for a, name := range grid.AxisNames {
		srcAx := grid.Uniform(name, n[a], opts.SrcGhost, 0, 2*math.Pi)
		nDst[a] = n[a] * opts.Mult[a] / opts.Frac[a]
		dstAx, err := grid.BuildAxis(srcAx, a, nDst[a], grid.DefaultFlags(), opts)
		require.NoError(t, err)
		src[a], dst[a] = srcAx.Coord, dstAx.Coord
	}
	return
}

func TestNeedsChunks(t *testing.T) {
	assert.False(t, NeedsChunks([3]int{64, 64, 64}, 8*64*64*64))
	assert.True(t, NeedsChunks([3]int{64, 64, 64}, 8*64*64*64-1))
	assert.True(t, NeedsChunks([3]int{2048, 2048, 2048}, 1<<30))
	// 2 MiB per field, chunks of at least 1 MiB
	assert.Equal(t, 2, Counts([3]int{64, 64, 64}, 1<<20, 16)[0]*
		Counts([3]int{64, 64, 64}, 1<<20, 16)[1]*Counts([3]int{64, 64, 64}, 1<<20, 16)[2])
}

func TestAxisWindows(t *testing.T) {
	src, dst, nDst := doubledGrids(t, [3]int{8, 8, 8})
	ws := AxisWindows(src[0], dst[0], nDst[0], 3, 3)
	require.Len(t, ws, 3)
	// 16 interior sites split 6, 5, 5
	assert.Equal(t, AxisWindow{Lo: 0, Hi: 11, OutLo: 0, OutHi: 9, VarLo: 0, VarHi: 9,
		SrcLo: ws[0].SrcLo, SrcHi: ws[0].SrcHi}, ws[0])
	assert.Equal(t, 9, ws[1].OutLo)
	assert.Equal(t, 14, ws[1].OutHi)
	assert.Equal(t, 3, ws[1].VarLo)
	assert.Equal(t, ws[1].Hi-ws[1].Lo+1-3, ws[1].VarHi)
	assert.Equal(t, 22, ws[2].OutHi)
	assert.Equal(t, ws[2].Hi-ws[2].Lo+1, ws[2].VarHi)
	for _, w := range ws {
		assert.Equal(t, w.Out().Len(), w.Var().Len())
		// The source window brackets the destination sites read
		if w.SrcLo > 0 {
			assert.Less(t, src[0][w.SrcLo], dst[0][w.Lo])
		}
		if w.SrcHi < len(src[0])-1 {
			assert.Greater(t, src[0][w.SrcHi], dst[0][w.Hi])
		}
	}
	{ // Destination sites outside the source range clamp the window
		jLo, jHi := bracket([]float64{0, 1, 2}, -1, 5)
		assert.Equal(t, [2]int{0, 2}, [2]int{jLo, jHi})
		jLo, jHi = bracket([]float64{0, 1, 2, 3}, 1.5, 1.5)
		assert.Equal(t, [2]int{1, 2}, [2]int{jLo, jHi})
	}
}

func TestPlanCoverage(t *testing.T) {
	src, dst, nDst := doubledGrids(t, [3]int{10, 8, 6})
	chunks := Plan(src, dst, nDst, 3, [3]int{3, 2, 2})
	require.Len(t, chunks, 12)
	var (
		m    = [3]int{len(dst[0]), len(dst[1]), len(dst[2])}
		tags = types.NewField3D(m[2], m[1], m[0])
		hits = types.NewField3D(m[2], m[1], m[0])
	)
	for n, c := range chunks {
		w := c.OutWindow()
		for k := w.Z.Lo; k < w.Z.Hi; k++ {
			for j := w.Y.Lo; j < w.Y.Hi; j++ {
				for i := w.X.Lo; i < w.X.Hi; i++ {
					tags.Set(k, j, i, float64(n))
					hits.Set(k, j, i, hits.At(k, j, i)+1)
				}
			}
		}
	}
	for _, val := range hits.Data {
		require.Equal(t, 1., val)
	}
	// z major order: the last chunk owns the far corner
	assert.Equal(t, 11., tags.At(m[2]-1, m[1]-1, m[0]-1))
	assert.Equal(t, 0., tags.At(0, 0, 0))
	assert.Equal(t, "[1 1 2]", chunks[11].String())
	assert.Panics(t, func() { Plan(src, dst, [3]int{1, 1, 1}, 3, [3]int{1, 1, 1}) })
}

func TestChunkedMatchesWhole(t *testing.T) {
	src, dst, nDst := doubledGrids(t, [3]int{12, 10, 8})
	F := types.NewField3D(len(src[2]), len(src[1]), len(src[0]))
	for k := range src[2] {
		for j := range src[1] {
			for i := range src[0] {
				F.Set(k, j, i, math.Sin(src[0][i])*math.Cos(2*src[1][j])+math.Sin(src[2][k]))
			}
		}
	}
	whole := interp.Remesh(F, src, dst)
	for _, counts := range [][3]int{{1, 1, 1}, {2, 1, 1}, {3, 2, 2}, {4, 3, 1}} {
		out := types.NewField3D(whole.Mz, whole.My, whole.Mx)
		for _, c := range Plan(src, dst, nDst, 3, counts) {
			block := c.Resample(F.Window(c.SrcWindow()), src, dst)
			out.Assign(c.OutWindow(), block)
		}
		assert.InDeltaSlice(t, whole.Data, out.Data, 1.e-12, "counts %v", counts)
	}
	{ // x keeps its 38 sites while going from 32 interior cells with 3 ghosts to 30 with 4
		var (
			n    = [3]int{32, 10, 8}
			nDst = [3]int{30, 16, 12}
		)
		for a, name := range grid.AxisNames {
			src[a] = grid.Uniform(name, n[a], 3, 0, 2*math.Pi).Coord
			dst[a] = grid.Uniform(name, nDst[a], 4, 0, 2*math.Pi).Coord
		}
		require.Equal(t, len(src[0]), len(dst[0]))
		F := types.NewField3D(len(src[2]), len(src[1]), len(src[0]))
		for k := range src[2] {
			for j := range src[1] {
				for i := range src[0] {
					F.Set(k, j, i, float64(i)+math.Cos(src[1][j])*math.Sin(src[2][k]))
				}
			}
		}
		whole := interp.Remesh(F, src, dst)
		for _, counts := range [][3]int{{1, 1, 1}, {3, 1, 1}, {2, 2, 2}} {
			out := types.NewField3D(whole.Mz, whole.My, whole.Mx)
			for _, c := range Plan(src, dst, nDst, 4, counts) {
				assert.Equal(t, c.Axes[0].Dst(), c.Axes[0].Src())
				block := c.Resample(F.Window(c.SrcWindow()), src, dst)
				out.Assign(c.OutWindow(), block)
			}
			assert.InDeltaSlice(t, whole.Data, out.Data, 1.e-12, "counts %v", counts)
		}
		// The kept axis carries the source values through
		assert.InDelta(t, 5., whole.At(2, 3, 5)-whole.At(2, 3, 0), 1.e-12)
	}
}
