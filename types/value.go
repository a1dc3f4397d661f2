package types

import (
	"fmt"

	"github.com/notargets/remesh/utils"
)

// ValueKind tags the storage class of a persisted record. It is resolved once when the record is read.
type ValueKind uint8

const (
	KindFloat ValueKind = iota
	KindInt
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBytes:
		return "bytes"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is a scalar or short array record: settings entries, unit factors, persisted values, the time stamp.
// Exactly one of Floats, Ints, Bytes is used, selected by Kind.
type Value struct {
	Kind   ValueKind
	Floats []float64
	Ints   []int64
	Bytes  []byte
}

func FloatValue(vals ...float64) Value { return Value{Kind: KindFloat, Floats: vals} }

func IntValue(vals ...int64) Value { return Value{Kind: KindInt, Ints: vals} }

func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

func (v Value) Len() int {
	switch v.Kind {
	case KindFloat:
		return len(v.Floats)
	case KindInt:
		return len(v.Ints)
	}
	return len(v.Bytes)
}

// Float returns element i converted to float64.
func (v Value) Float(i int) float64 {
	switch v.Kind {
	case KindFloat:
		return v.Floats[i]
	case KindInt:
		return float64(v.Ints[i])
	}
	panic(fmt.Errorf("bytes value has no numeric element"))
}

// Int returns element i converted to int.
func (v Value) Int(i int) int {
	switch v.Kind {
	case KindFloat:
		return int(v.Floats[i])
	case KindInt:
		return int(v.Ints[i])
	}
	panic(fmt.Errorf("bytes value has no numeric element"))
}

// Broadcast returns a value of the same kind holding n copies of element 0.
func (v Value) Broadcast(n int) (r Value) {
	r.Kind = v.Kind
	switch v.Kind {
	case KindFloat:
		r.Floats = utils.ConstArray(n, v.Floats[0])
	case KindInt:
		r.Ints = make([]int64, n)
		for i := range r.Ints {
			r.Ints[i] = v.Ints[0]
		}
	case KindBytes:
		r.Bytes = append([]byte(nil), v.Bytes...)
	}
	return
}

func (v Value) Copy() (r Value) {
	r.Kind = v.Kind
	r.Floats = append([]float64(nil), v.Floats...)
	r.Ints = append([]int64(nil), v.Ints...)
	r.Bytes = append([]byte(nil), v.Bytes...)
	return
}
