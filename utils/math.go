package utils

import "fmt"

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

// Gradient fills dst with the finite difference derivative of y with respect to its index: second order central
// differences in the interior and first order one sided differences at both ends. dst is allocated when nil.
func Gradient(dst, y []float64) []float64 {
	n := len(y)
	if n < 2 {
		panic(fmt.Errorf("gradient needs at least two samples, have %d", n))
	}
	if dst == nil {
		dst = make([]float64, n)
	}
	if len(dst) != n {
		panic(fmt.Errorf("gradient length mismatch: dst %d, y %d", len(dst), n))
	}
	dst[0] = y[1] - y[0]
	for i := 1; i < n-1; i++ {
		dst[i] = 0.5 * (y[i+1] - y[i-1])
	}
	dst[n-1] = y[n-1] - y[n-2]
	return dst
}

// Reciprocal returns 1/x elementwise.
func Reciprocal(x []float64) (r []float64) {
	r = make([]float64, len(x))
	for i, val := range x {
		r[i] = 1. / val
	}
	return
}
