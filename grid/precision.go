package grid

import (
	"errors"
	"fmt"
)

var ErrInvalidPrecision = errors.New("invalid precision tag")

// Precision is the floating point width of a snapshot, tagged "D" (double) or "S" (single) in the settings group.
type Precision uint8

const (
	Double Precision = iota
	Single
)

func ParsePrecision(tag string) (Precision, error) {
	switch tag {
	case "D":
		return Double, nil
	case "S":
		return Single, nil
	}
	return Double, fmt.Errorf("precision %q not valid, use \"D\" or \"S\": %w", tag, ErrInvalidPrecision)
}

func (p Precision) Tag() string {
	if p == Single {
		return "S"
	}
	return "D"
}

func (p Precision) String() string {
	if p == Single {
		return "single"
	}
	return "double"
}

// Bytes is the storage width of one value.
func (p Precision) Bytes() int {
	if p == Single {
		return 4
	}
	return 8
}

// Round returns val as representable in this precision.
func (p Precision) Round(val float64) float64 {
	if p == Single {
		return float64(float32(val))
	}
	return val
}

// RoundSlice rounds x in place and returns it.
func (p Precision) RoundSlice(x []float64) []float64 {
	if p == Double {
		return x
	}
	for i, val := range x {
		x[i] = float64(float32(val))
	}
	return x
}
