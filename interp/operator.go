package interp

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
)

// Operator is the sparse NDst x NSrc matrix resampling a line sampled at the source sites onto the destination
// sites. Each row has at most two non-zeros: linear interpolation inside the source range and linear
// extrapolation from the end intervals outside it.
type Operator struct {
	NSrc, NDst int
	M          *sparse.CSR
}

func NewOperator(src, dst []float64) (op Operator) {
	var (
		nSrc = len(src)
		nDst = len(dst)
	)
	if nSrc == 0 || nDst == 0 {
		panic(fmt.Errorf("empty resampling coordinates: %d source, %d destination", nSrc, nDst))
	}
	dok := sparse.NewDOK(nDst, nSrc)
	for r, x := range dst {
		if nSrc == 1 {
			dok.Set(r, 0, 1)
			continue
		}
		j := sort.SearchFloat64s(src, x) - 1
		switch {
		case j < 0:
			j = 0
		case j > nSrc-2:
			j = nSrc - 2
		}
		t := (x - src[j]) / (src[j+1] - src[j])
		if w := 1 - t; w != 0 {
			dok.Set(r, j, w)
		}
		if t != 0 {
			dok.Set(r, j+1, t)
		}
	}
	op = Operator{
		NSrc: nSrc,
		NDst: nDst,
		M:    dok.ToCSR(),
	}
	return
}

// Apply writes the resampled line into dst, which must have length NDst.
func (op Operator) Apply(dst, src []float64) {
	if len(src) != op.NSrc || len(dst) != op.NDst {
		panic(fmt.Errorf("operator is %dx%d, have destination %d and source %d",
			op.NDst, op.NSrc, len(dst), len(src)))
	}
	// MulVecTo accumulates into dst
	for r := range dst {
		dst[r] = 0
	}
	op.M.MulVecTo(dst, false, src)
}
