package types

import "fmt"

// Field3D is one simulation variable stored row major with shape [mz, my, mx], x varying fastest.
type Field3D struct {
	Mz, My, Mx int
	Data       []float64
}

func NewField3D(mz, my, mx int) (F Field3D) {
	F = Field3D{
		Mz:   mz,
		My:   my,
		Mx:   mx,
		Data: make([]float64, mz*my*mx),
	}
	return
}

// NewField3DFrom wraps data without copying it.
func NewField3DFrom(mz, my, mx int, data []float64) (F Field3D) {
	if len(data) != mz*my*mx {
		panic(fmt.Errorf("field data length %d does not match shape [%d,%d,%d]", len(data), mz, my, mx))
	}
	F = Field3D{Mz: mz, My: my, Mx: mx, Data: data}
	return
}

func (F Field3D) Shape() [3]int { return [3]int{F.Mz, F.My, F.Mx} }

func (F Field3D) Len() int { return F.Mz * F.My * F.Mx }

func (F Field3D) Index(k, j, i int) int { return i + F.Mx*(j+F.My*k) }

func (F Field3D) At(k, j, i int) float64 { return F.Data[F.Index(k, j, i)] }

func (F Field3D) Set(k, j, i int, val float64) { F.Data[F.Index(k, j, i)] = val }

func (F Field3D) Copy() (R Field3D) {
	R = NewField3D(F.Mz, F.My, F.Mx)
	copy(R.Data, F.Data)
	return
}

// Window returns a copy of the sub-array covered by w.
func (F Field3D) Window(w Window) (R Field3D) {
	F.checkWindow(w)
	R = NewField3D(w.Z.Len(), w.Y.Len(), w.X.Len())
	var ind int
	for k := w.Z.Lo; k < w.Z.Hi; k++ {
		for j := w.Y.Lo; j < w.Y.Hi; j++ {
			row := F.Index(k, j, w.X.Lo)
			ind += copy(R.Data[ind:ind+R.Mx], F.Data[row:row+R.Mx])
		}
	}
	return
}

// Assign writes src into the sub-array covered by w. The shape of src must match w.
func (F Field3D) Assign(w Window, src Field3D) {
	F.checkWindow(w)
	if src.Shape() != w.Shape() {
		panic(fmt.Errorf("assign shape mismatch: window %v, source %v", w.Shape(), src.Shape()))
	}
	var ind int
	for k := w.Z.Lo; k < w.Z.Hi; k++ {
		for j := w.Y.Lo; j < w.Y.Hi; j++ {
			row := F.Index(k, j, w.X.Lo)
			ind += copy(F.Data[row:row+src.Mx], src.Data[ind:ind+src.Mx])
		}
	}
}

// Apply replaces every value by f(value) in place and returns the receiver.
func (F Field3D) Apply(f func(val float64) float64) Field3D {
	for i, val := range F.Data {
		F.Data[i] = f(val)
	}
	return F
}

func (F Field3D) checkWindow(w Window) {
	if !w.Z.Within(F.Mz) || !w.Y.Within(F.My) || !w.X.Within(F.Mx) {
		panic(fmt.Errorf("window %v out of bounds for shape %v", w, F.Shape()))
	}
}
