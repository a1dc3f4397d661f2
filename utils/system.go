package utils

import (
	"math"
	"runtime"
)

// MemUsage returns the live heap and the memory obtained from the OS, in MiB, and the completed GC cycles.
func MemUsage() (allocMiB, sysMiB uint64, numGC uint32) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc >> 20, m.Sys >> 20, m.NumGC
}

// HasNaN reports whether any value of f is NaN.
func HasNaN(f []float64) bool {
	for _, val := range f {
		if math.IsNaN(val) {
			return true
		}
	}
	return false
}
