package interp

import (
	"fmt"

	"github.com/notargets/remesh/types"
)

var axisNames = [3]string{"x", "y", "z"}

// Step resamples a field along one axis (0 = x, 1 = y, 2 = z).
type Step struct {
	Axis int
	Op   Operator
}

func NewStep(axis int, src, dst []float64) Step {
	return Step{Axis: axis, Op: NewOperator(src, dst)}
}

func (s Step) String() string {
	return fmt.Sprintf("%s: %d -> %d", axisNames[s.Axis], s.Op.NSrc, s.Op.NDst)
}

// Apply returns a new field with the step's axis resampled, the other axes are unchanged.
func (s Step) Apply(F types.Field3D) (R types.Field3D) {
	var (
		shape = [3]int{F.Mx, F.My, F.Mz}
		out   = shape
	)
	if shape[s.Axis] != s.Op.NSrc {
		panic(fmt.Errorf("axis %s of field has %d sites, operator expects %d",
			axisNames[s.Axis], shape[s.Axis], s.Op.NSrc))
	}
	out[s.Axis] = s.Op.NDst
	R = types.NewField3D(out[2], out[1], out[0])
	var (
		sIn     = [3]int{1, F.Mx, F.Mx * F.My}
		sOut    = [3]int{1, R.Mx, R.Mx * R.My}
		a, b    = (s.Axis + 1) % 3, (s.Axis + 2) % 3
		srcLine = make([]float64, s.Op.NSrc)
		dstLine = make([]float64, s.Op.NDst)
	)
	for ia := 0; ia < shape[a]; ia++ {
		for ib := 0; ib < shape[b]; ib++ {
			baseIn := ia*sIn[a] + ib*sIn[b]
			baseOut := ia*sOut[a] + ib*sOut[b]
			for p := range srcLine {
				srcLine[p] = F.Data[baseIn+p*sIn[s.Axis]]
			}
			s.Op.Apply(dstLine, srcLine)
			for p, val := range dstLine {
				R.Data[baseOut+p*sOut[s.Axis]] = val
			}
		}
	}
	return
}

// Pipeline is an ordered list of axis steps, each step sees the shape left by the previous one.
type Pipeline []Step

// Changed reports, per axis, whether the source and destination site counts differ.
func Changed(src, dst [3][]float64) (axes [3]bool) {
	for a := range axes {
		axes[a] = len(src[a]) != len(dst[a])
	}
	return
}

// NewPipeline builds the x, y, z steps between the source and destination coordinates for the axes selected.
func NewPipeline(src, dst [3][]float64, axes [3]bool) (P Pipeline) {
	for axis := 0; axis < 3; axis++ {
		if !axes[axis] {
			continue
		}
		P = append(P, NewStep(axis, src[axis], dst[axis]))
	}
	return
}

// Apply runs the steps in order. The input field is never modified, an empty pipeline returns a copy.
func (P Pipeline) Apply(F types.Field3D) (R types.Field3D) {
	R = F.Copy()
	for _, s := range P {
		R = s.Apply(R)
	}
	return
}

// Remesh resamples a field with shape [len(src[2]), len(src[1]), len(src[0])] onto the destination coordinates,
// in x, y, z order. Axes with equal source and destination counts are not resampled.
func Remesh(F types.Field3D, src, dst [3][]float64) types.Field3D {
	return Resample(F, src, dst, Changed(src, dst))
}

// Resample is Remesh restricted to the axes selected. An axis left out must have equal source and destination
// counts; its values are carried over unchanged.
func Resample(F types.Field3D, src, dst [3][]float64, axes [3]bool) types.Field3D {
	checkShape(F, src)
	for a, resample := range axes {
		if !resample && len(src[a]) != len(dst[a]) {
			panic(fmt.Errorf("axis %s is kept but has %d source and %d destination sites",
				axisNames[a], len(src[a]), len(dst[a])))
		}
	}
	return NewPipeline(src, dst, axes).Apply(F)
}

func checkShape(F types.Field3D, src [3][]float64) {
	if F.Mx != len(src[0]) || F.My != len(src[1]) || F.Mz != len(src[2]) {
		panic(fmt.Errorf("field shape %v does not match source coordinates [%d,%d,%d]",
			F.Shape(), len(src[2]), len(src[1]), len(src[0])))
	}
}
