package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/remesh/types"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrReadOnly         = errors.New("container opened read only")
	ErrShape            = errors.New("shape mismatch")
	ErrBytesUnsupported = errors.New("byte values unsupported by the parallel driver")
	ErrCommitted        = errors.New("dataset already written to the container")
)

// source reads blocks of a 3-D float dataset that stays in the container until asked for.
type source interface {
	ReadWindow(shape []int, w types.Window) ([]float64, error)
}

// residency says where the values of a dataset live.
type residency uint8

const (
	resident  residency = iota // in memory
	stored                     // in the container, read through src
	pending                    // created, nothing written yet, reads as zero
	committed                  // handed to the container writer, no longer accessible
)

// Dataset is a named array of one value kind. Float datasets flagged Single hold values rounded to float32 and
// are stored as 32 bit floats.
type Dataset struct {
	mu     sync.RWMutex
	name   string
	shape  []int
	value  types.Value
	single bool
	state  residency
	src    source
}

func newDataset(name string, shape []int, value types.Value, single bool) (ds *Dataset, err error) {
	if value.Kind != types.KindBytes && size(shape) != value.Len() {
		err = fmt.Errorf("dataset %q: %d values for shape %v: %w", name, value.Len(), shape, ErrShape)
		return
	}
	ds = &Dataset{
		name:   name,
		shape:  append([]int(nil), shape...),
		value:  value,
		single: single && value.Kind == types.KindFloat,
	}
	ds.round()
	return
}

// newStored is a float field left in the container.
func newStored(name string, shape []int, single bool, src source) *Dataset {
	return &Dataset{
		name:   name,
		shape:  append([]int(nil), shape...),
		value:  types.Value{Kind: types.KindFloat},
		single: single,
		state:  stored,
		src:    src,
	}
}

func size(shape []int) (n int) {
	n = 1
	for _, s := range shape {
		n *= s
	}
	return
}

func (ds *Dataset) round() {
	if !ds.single {
		return
	}
	for i, val := range ds.value.Floats {
		ds.value.Floats[i] = float64(float32(val))
	}
}

func (ds *Dataset) Name() string { return ds.name }

func (ds *Dataset) Shape() []int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return append([]int(nil), ds.shape...)
}

func (ds *Dataset) Kind() types.ValueKind { return ds.value.Kind }

func (ds *Dataset) Single() bool { return ds.single }

// Resident reports whether the values are held in memory.
func (ds *Dataset) Resident() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.state == resident
}

// Value returns a copy of the values held in memory. Fields still in the container, or not written yet, have
// none: read those with Field or ReadWindow.
func (ds *Dataset) Value() types.Value {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.state != resident {
		return types.Value{Kind: ds.value.Kind}
	}
	return ds.value.Copy()
}

// Floats returns a copy of a numeric dataset as float64.
func (ds *Dataset) Floats() (f []float64, err error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.state != resident {
		var F types.Field3D
		if F, err = ds.read(ds.full()); err != nil {
			return
		}
		return F.Data, nil
	}
	switch ds.value.Kind {
	case types.KindFloat:
		f = append([]float64(nil), ds.value.Floats...)
	case types.KindInt:
		f = make([]float64, len(ds.value.Ints))
		for i, val := range ds.value.Ints {
			f[i] = float64(val)
		}
	default:
		err = fmt.Errorf("dataset %q holds bytes, not numbers", ds.name)
	}
	return
}

// Write replaces the values, which must keep the dataset's kind and length.
func (ds *Dataset) Write(v types.Value) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.state != resident {
		return fmt.Errorf("dataset %q is a field, write it by window: %w", ds.name, ErrShape)
	}
	if v.Kind != ds.value.Kind || (v.Kind != types.KindBytes && v.Len() != ds.value.Len()) {
		return fmt.Errorf("dataset %q: writing %d %s values over %d %s values: %w",
			ds.name, v.Len(), v.Kind, ds.value.Len(), ds.value.Kind, ErrShape)
	}
	ds.value = v.Copy()
	ds.round()
	return nil
}

func (ds *Dataset) full() types.Window {
	if len(ds.shape) != 3 {
		return types.Window{}
	}
	return types.FullWindow(ds.shape[0], ds.shape[1], ds.shape[2])
}

func (ds *Dataset) check(w types.Window) error {
	if len(ds.shape) != 3 || ds.value.Kind != types.KindFloat {
		return fmt.Errorf("dataset %q with shape %v is not a 3-D float array: %w", ds.name, ds.shape, ErrShape)
	}
	if !w.Z.Within(ds.shape[0]) || !w.Y.Within(ds.shape[1]) || !w.X.Within(ds.shape[2]) {
		return fmt.Errorf("dataset %q: window %v outside shape %v: %w", ds.name, w, ds.shape, ErrShape)
	}
	if ds.state == committed {
		return fmt.Errorf("dataset %q: %w", ds.name, ErrCommitted)
	}
	return nil
}

// read returns a new block w. Only w is taken from the container when the values are stored there.
func (ds *Dataset) read(w types.Window) (F types.Field3D, err error) {
	if err = ds.check(w); err != nil {
		return
	}
	s := w.Shape()
	switch ds.state {
	case pending:
		F = types.NewField3D(s[0], s[1], s[2])
	case stored:
		var data []float64
		if data, err = ds.src.ReadWindow(ds.shape, w); err != nil {
			err = fmt.Errorf("dataset %q window %v: %w", ds.name, w, err)
			return
		}
		if len(data) != w.Size() {
			err = fmt.Errorf("dataset %q: %d values read for window %v: %w", ds.name, len(data), w, ErrShape)
			return
		}
		F = types.NewField3DFrom(s[0], s[1], s[2], data)
	default:
		F = types.NewField3DFrom(ds.shape[0], ds.shape[1], ds.shape[2], ds.value.Floats).Window(w)
	}
	return
}

// Field returns a copy of a 3-D float dataset.
func (ds *Dataset) Field() (F types.Field3D, err error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if F, err = ds.read(ds.full()); err != nil {
		return
	}
	if ds.state == resident {
		F = F.Copy()
	}
	return
}

// ReadWindow returns a copy of the block w of a 3-D float dataset.
func (ds *Dataset) ReadWindow(w types.Window) (F types.Field3D, err error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.read(w)
}

// WriteWindow stores F into the block w of a 3-D float dataset. The dataset is brought into memory first, a
// dataset that was never written starts from zero.
func (ds *Dataset) WriteWindow(w types.Window, F types.Field3D) (err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err = ds.check(w); err != nil {
		return
	}
	if w.Shape() != F.Shape() {
		return fmt.Errorf("dataset %q: writing %v block at %v into shape %v: %w",
			ds.name, F.Shape(), w, ds.shape, ErrShape)
	}
	if err = ds.load(); err != nil {
		return
	}
	if ds.single {
		F = F.Copy().Apply(func(val float64) float64 { return float64(float32(val)) })
	}
	types.NewField3DFrom(ds.shape[0], ds.shape[1], ds.shape[2], ds.value.Floats).Assign(w, F)
	return
}

// load makes a pending or stored dataset resident. The caller holds the write lock.
func (ds *Dataset) load() (err error) {
	switch ds.state {
	case pending:
		ds.value.Floats = make([]float64, size(ds.shape))
	case stored:
		var F types.Field3D
		if F, err = ds.read(ds.full()); err != nil {
			return
		}
		ds.value.Floats, ds.src = F.Data, nil
	default:
		return
	}
	ds.state = resident
	return
}

// payload returns the values to be written to the container: a stored field is read in full, a pending one is
// zero. It leaves the dataset as it was.
func (ds *Dataset) payload() (v types.Value, err error) {
	switch ds.state {
	case resident:
		v = ds.value
	case committed:
		err = fmt.Errorf("dataset %q: %w", ds.name, ErrCommitted)
	default:
		var F types.Field3D
		if F, err = ds.read(ds.full()); err != nil {
			return
		}
		v = types.FloatValue(F.Data...)
	}
	return
}

// release drops the values once they are in the container.
func (ds *Dataset) release() {
	ds.value.Floats, ds.value.Ints, ds.value.Bytes = nil, nil, nil
	ds.src = nil
	ds.state = committed
}

func (ds *Dataset) copy() *Dataset {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return &Dataset{
		name:   ds.name,
		shape:  append([]int(nil), ds.shape...),
		value:  ds.value.Copy(),
		single: ds.single,
		state:  ds.state,
		src:    ds.src,
	}
}
