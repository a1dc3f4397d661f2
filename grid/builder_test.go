package grid

import (
	"math"
	"testing"

	"github.com/notargets/remesh/types"
	"github.com/notargets/remesh/utils"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func cubeSettings(n, ghost int) Settings {
	s := Settings{Extra: map[string]types.Value{
		"mvar": types.IntValue(8),
		"maux": types.IntValue(0),
	}}
	s.SetMesh([3]int{n, n, n}, ghost)
	s.SetNproc([3]int{2, 2, 1})
	return s
}

func cubeGrid(n, ghost int, length float64) (g Grid) {
	for dim, name := range AxisNames {
		g.Axes[dim] = Uniform(name, n, ghost, 0, length)
	}
	return
}

func TestBuildDoubledPeriodicCube(t *testing.T) {
	var (
		log, _ = logtest.NewNullLogger()
		src    = cubeGrid(32, 3, 2*math.Pi)
		opts   = DefaultOptions()
	)
	dst, sets, err := Build(src, cubeSettings(32, 3), DefaultFlags(), opts, log)
	require.NoError(t, err)
	assert.Equal(t, [3]int{64, 64, 64}, sets.N())
	assert.Equal(t, [3]int{70, 70, 70}, sets.M())
	// Layout requested as [1,1,1] keeps the source layout
	assert.Equal(t, [3]int{2, 2, 1}, sets.Nproc())
	assert.Equal(t, 8, sets.ExtraInt("mvar", 0))
	dSrc := src.Axes[0].D
	for dim := range dst.Axes {
		ax := dst.Axes[dim]
		assert.Equal(t, 70, ax.M())
		// The spacing spans the source interior with n_dst - 1 steps
		assert.InDelta(t, 31*dSrc/63, ax.D, 1.e-14)
		assert.InDelta(t, dSrc/2, ax.D, 0.02*dSrc/2)
		// Periodic axes keep the domain length and origin
		assert.Equal(t, src.Axes[dim].L, ax.L)
		assert.Equal(t, src.Axes[dim].O, ax.O)
		require.NoError(t, ax.Validate())
	}
}

func TestGridInvariants(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	for _, tc := range []struct {
		n, srcGhost, dstGhost int
		mult, frac            int
	}{
		{32, 3, 3, 2, 1},
		{32, 3, 2, 1, 2},
		{30, 3, 4, 3, 2},
		{17, 2, 3, 1, 1},
	} {
		opts := DefaultOptions()
		opts.SrcGhost, opts.DstGhost = tc.srcGhost, tc.dstGhost
		opts.Mult = [3]int{tc.mult, tc.mult, 1}
		opts.Frac = [3]int{tc.frac, tc.frac, 1}
		src := cubeGrid(tc.n, tc.srcGhost, 1)
		dst, sets, err := Build(src, cubeSettings(tc.n, tc.srcGhost), DefaultFlags(), opts, log)
		require.NoError(t, err)
		g := tc.dstGhost
		assert.Equal(t, sets.Nx+2*g, sets.Mx)
		assert.Equal(t, sets.Ny+2*g, sets.My)
		assert.Equal(t, sets.Nz+2*g, sets.Mz)
		assert.Equal(t, sets.Mx-1-g, sets.L2)
		assert.Equal(t, sets.My-1-g, sets.M2)
		assert.Equal(t, sets.Mz-1-g, sets.N2)
		assert.Equal(t, [3]int{g, g, g}, [3]int{sets.L1, sets.M1, sets.N1})
		for dim := range dst.Axes {
			ax := dst.Axes[dim]
			m := sets.M()[dim]
			require.Equal(t, m, ax.M())
			// Ghost extrapolation law
			for j := 0; j < g; j++ {
				assert.InDelta(t, ax.Coord[g]-float64(j+1)*ax.D, ax.Coord[g-1-j], 1.e-12)
				assert.InDelta(t, ax.Coord[m-g-1]+float64(j+1)*ax.D, ax.Coord[m-g+j], 1.e-12)
			}
			// Derivative consistency
			grad := utils.Gradient(nil, ax.Coord)
			for i := range ax.Coord {
				assert.InDelta(t, 1/grad[i], ax.D1[i], 1.e-9)
			}
			assert.True(t, floats.EqualApprox(utils.Gradient(nil, ax.D1), ax.DTilde, 1.e-9))
			require.NoError(t, ax.Validate())
		}
	}
}

func TestBuildAxisBoundaries(t *testing.T) {
	src := Uniform("x", 16, 3, -1, 2)
	{ // Unchanged interior count and ghost width copies the axis
		opts := DefaultOptions()
		dst, err := BuildAxis(src, 0, 16, DefaultFlags(), opts)
		require.NoError(t, err)
		assert.Equal(t, src, dst)
		dst.Coord[0] = 100
		assert.NotEqual(t, 100., src.Coord[0])
	}
	{ // Symmetric placement shifts the interior up by half a step
		opts := DefaultOptions()
		dst, err := BuildAxis(src, 0, 32, DefaultFlags(), opts)
		require.NoError(t, err)
		d := dst.D
		assert.InDelta(t, src.Coord[3]-d+0.5*d, dst.Coord[3], 1.e-14)
		assert.InDelta(t, src.Coord[18]+0.5*d, dst.Coord[34], 1.e-14)
	}
	{ // Lower shift without symmetric placement
		opts := DefaultOptions()
		opts.Symmetric = false
		flags := DefaultFlags()
		flags.ShiftOriginLower[0] = true
		dst, err := BuildAxis(src, 0, 32, flags, opts)
		require.NoError(t, err)
		d := dst.D
		assert.InDelta(t, src.Coord[3]-1.5*d, dst.Coord[3], 1.e-14)
	}
	{ // No shift at all
		opts := DefaultOptions()
		opts.Symmetric = false
		dst, err := BuildAxis(src, 0, 32, DefaultFlags(), opts)
		require.NoError(t, err)
		assert.InDelta(t, src.Coord[3]-dst.D, dst.Coord[3], 1.e-14)
		assert.InDelta(t, src.Coord[18], dst.Coord[34], 1.e-14)
	}
	{ // Non-periodic axes grow the domain by one step and move the origin down by half a step
		flags := DefaultFlags()
		flags.Periodic[0] = false
		dst, err := BuildAxis(src, 0, 32, flags, DefaultOptions())
		require.NoError(t, err)
		assert.InDelta(t, src.L+dst.D, dst.L, 1.e-14)
		assert.InDelta(t, src.O-0.5*dst.D, dst.O, 1.e-14)
	}
	{ // Single precision output is representable in float32
		opts := DefaultOptions()
		opts.Precision = Single
		dst, err := BuildAxis(src, 0, 24, DefaultFlags(), opts)
		require.NoError(t, err)
		for _, x := range dst.Coord {
			assert.Equal(t, float64(float32(x)), x)
		}
		assert.Equal(t, float64(float32(dst.D)), dst.D)
	}
	{ // A single interior cell cannot be stretched over a new mesh
		flat := Uniform("z", 1, 3, 0, 1)
		_, err := BuildAxis(flat, 2, 2, DefaultFlags(), DefaultOptions())
		assert.ErrorIs(t, err, ErrDegenerateAxis)
		_, err = BuildAxis(src, 0, 1, DefaultFlags(), DefaultOptions())
		assert.ErrorIs(t, err, ErrDegenerateAxis)
	}
}

func TestBuildWarnsOnNonEquidistant(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	flags := DefaultFlags()
	flags.Equidistant[1] = false
	dst, _, err := Build(cubeGrid(8, 3, 1), cubeSettings(8, 3), flags, DefaultOptions(), log)
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "y", hook.LastEntry().Data["axis"])
	// The axis is still rebuilt as equidistant
	assert.Equal(t, 22, dst.Axes[1].M())
}

func TestSettingsRecords(t *testing.T) {
	records := map[string]types.Value{
		"nx": types.IntValue(32), "ny": types.IntValue(16), "nz": types.IntValue(1),
		"mx": types.IntValue(38), "my": types.IntValue(22), "mz": types.IntValue(7),
		"nprocx": types.IntValue(4), "nprocy": types.IntValue(2), "nprocz": types.IntValue(1),
		"mvar":      types.IntValue(5),
		"precision": types.BytesValue([]byte("S")),
	}
	s, err := NewSettings(records)
	require.NoError(t, err)
	assert.Equal(t, [3]int{32, 16, 1}, s.N())
	assert.Equal(t, 8, s.NProcs())
	assert.Equal(t, Single, s.Precision)
	assert.Equal(t, 5, s.ExtraInt("mvar", 0))
	assert.Equal(t, 0, s.ExtraInt("maux", 0))
	out := s.Records()
	_, hasPrecision := out[PrecisionKey]
	assert.False(t, hasPrecision)
	assert.Equal(t, types.IntValue(32), out["nx"])
	assert.Contains(t, s.Keys(), "mvar")
	{
		records["precision"] = types.BytesValue([]byte("Q"))
		_, err = NewSettings(records)
		assert.ErrorIs(t, err, ErrInvalidPrecision)
		delete(records, "precision")
		delete(records, "nx")
		_, err = NewSettings(records)
		assert.Error(t, err)
	}
}

func TestPrecision(t *testing.T) {
	p, err := ParsePrecision("S")
	require.NoError(t, err)
	assert.Equal(t, Single, p)
	assert.Equal(t, "S", p.Tag())
	assert.Equal(t, 4, p.Bytes())
	assert.Equal(t, float64(float32(0.1)), p.Round(0.1))
	p, err = ParsePrecision("D")
	require.NoError(t, err)
	assert.Equal(t, 0.1, p.Round(0.1))
	_, err = ParsePrecision("invalid_tag")
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}
