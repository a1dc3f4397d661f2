package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-hdf5/hdf5"
	h5 "github.com/scigolib/hdf5"

	"github.com/notargets/remesh/types"
)

// HDF5 keeps containers as HDF5 files on disk. Containers are read with go-hdf5, fields one window at a time.
// They are written with scigolib/hdf5, which stores multi-dimensional datasets with their true shape. Byte values
// are stored as uint8 arrays.
type HDF5 struct{}

func (HDF5) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fields serializes window reads of the 3-D datasets of one open file.
type fields struct {
	mu   sync.Mutex
	file *hdf5.File
}

func (fs *fields) Close() error { return fs.file.Close() }

type fieldSource struct {
	fs *fields
	ds *hdf5.Dataset
}

func (s fieldSource) ReadWindow(_ []int, w types.Window) (data []float64, err error) {
	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	var (
		start = []uint64{uint64(w.Z.Lo), uint64(w.Y.Lo), uint64(w.X.Lo)}
		count = []uint64{uint64(w.Z.Len()), uint64(w.Y.Len()), uint64(w.X.Len())}
	)
	err = s.ds.ReadSlice(start, count, &data)
	return
}

// Load keeps the file open while fields are read from it.
func (HDF5) Load(path string, root *Group) (closer io.Closer, err error) {
	fs := &fields{}
	if fs.file, err = hdf5.Open(path); err != nil {
		return
	}
	if err = loadGroup(fs.file.Root(), root, fs); err != nil {
		fs.Close()
		return
	}
	return fs, nil
}

func loadGroup(src *hdf5.Group, dst *Group, fs *fields) (err error) {
	var members []string
	if members, err = src.Members(); err != nil {
		return
	}
	for _, name := range members {
		if sub, gerr := src.OpenGroup(name); gerr == nil {
			child := newGroup(name, dst.join(name), dst.file)
			if err = loadGroup(sub, child, fs); err != nil {
				return
			}
			dst.groups[name] = child
			continue
		}
		var ds *hdf5.Dataset
		if ds, err = src.OpenDataset(name); err != nil {
			return fmt.Errorf("opening %s/%s: %w", src.Path(), name, err)
		}
		if dst.datasets[name], err = loadDataset(name, ds, fs); err != nil {
			return fmt.Errorf("reading %s/%s: %w", src.Path(), name, err)
		}
	}
	return
}

func loadDataset(name string, src *hdf5.Dataset, fs *fields) (ds *Dataset, err error) {
	var (
		t      reflect.Type
		shape  []int
		v      types.Value
		single bool
	)
	if t, err = src.GoType(); err != nil {
		return
	}
	for _, d := range src.Shape() {
		shape = append(shape, int(d))
	}
	if len(shape) == 0 {
		shape = []int{1}
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		single = t.Kind() == reflect.Float32
		if len(shape) == 3 {
			return newStored(name, shape, single, fieldSource{fs: fs, ds: src}), nil
		}
		v.Kind = types.KindFloat
		v.Floats, err = src.ReadFloat64()
	case reflect.Uint8:
		var b []uint8
		if b, err = src.ReadUint8(); err != nil {
			return
		}
		v, shape = types.BytesValue(b), []int{1}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.Kind = types.KindInt
		v.Ints, err = src.ReadInt64()
	case reflect.String:
		var s []string
		if s, err = src.ReadString(); err != nil {
			return
		}
		v, shape = types.BytesValue([]byte(strings.Join(s, ""))), []int{1}
	default:
		err = fmt.Errorf("unsupported element type %v", t)
	}
	if err != nil {
		return
	}
	return newDataset(name, shape, v, single)
}

// Create writes to a temporary file moved over path when the writer is closed.
func (HDF5) Create(path string) (Writer, error) {
	tmp := path + ".tmp"
	fw, err := h5.CreateForWrite(tmp, h5.CreateTruncate)
	if err != nil {
		return nil, err
	}
	return &hdf5Writer{fw: fw, path: path, tmp: tmp, groups: map[string]bool{"/": true}}, nil
}

type hdf5Writer struct {
	fw        *h5.FileWriter
	path, tmp string
	groups    map[string]bool
}

func (w *hdf5Writer) Group(path string) (err error) {
	if path == "" || w.groups[path] {
		return
	}
	if i := strings.LastIndex(path, "/"); i > 0 {
		if err = w.Group(path[:i]); err != nil {
			return
		}
	}
	if _, err = w.fw.CreateGroup(path); err != nil {
		return fmt.Errorf("group %s: %w", path, err)
	}
	w.groups[path] = true
	return
}

func (w *hdf5Writer) Put(path string, shape []int, v types.Value, single bool) (err error) {
	if err = w.Group(path[:strings.LastIndex(path, "/")]); err != nil {
		return
	}
	var (
		dims  = make([]uint64, len(shape))
		dtype = h5.Float64
		data  interface{}
	)
	for i, d := range shape {
		dims[i] = uint64(d)
	}
	switch v.Kind {
	case types.KindFloat:
		data = v.Floats
		if single {
			f32 := make([]float32, len(v.Floats))
			for i, val := range v.Floats {
				f32[i] = float32(val)
			}
			dtype, data = h5.Float32, f32
		}
	case types.KindInt:
		dtype, data = h5.Int64, v.Ints
	case types.KindBytes:
		dtype, data, dims = h5.Uint8, []uint8(v.Bytes), []uint64{uint64(len(v.Bytes))}
	default:
		return fmt.Errorf("unsupported value kind %v", v.Kind)
	}
	ds, err := w.fw.CreateDataset(path, dtype, dims)
	if err != nil {
		return
	}
	return ds.Write(data)
}

func (w *hdf5Writer) Close() (err error) {
	if err = w.fw.Close(); err != nil {
		os.Remove(w.tmp)
		return
	}
	return os.Rename(w.tmp, w.path)
}

func (w *hdf5Writer) Discard() error {
	return errors.Join(w.fw.Close(), os.Remove(w.tmp))
}
