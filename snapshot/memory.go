package snapshot

import (
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/notargets/remesh/types"
)

// Memory keeps containers in process, keyed by path. Like the HDF5 backend it leaves 3-D fields in the container
// until they are read, and counts the field values read so callers can check what was held.
type Memory struct {
	mu    sync.Mutex
	files map[string]*Group
	read  atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]*Group)}
}

func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *Memory) Load(path string, root *Group) (io.Closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	m.attach(stored, root)
	return io.NopCloser(nil), nil
}

// attach fills dst from a stored tree. Stored trees are never modified, so fields read straight from them.
func (m *Memory) attach(src, dst *Group) {
	for name, sub := range src.groups {
		child := newGroup(name, dst.join(name), dst.file)
		m.attach(sub, child)
		dst.groups[name] = child
	}
	for name, ds := range src.datasets {
		if len(ds.shape) == 3 && ds.value.Kind == types.KindFloat {
			dst.datasets[name] = newStored(name, ds.shape, ds.single, memSource{values: ds.value.Floats, m: m})
			continue
		}
		dst.datasets[name] = ds.copy()
	}
}

type memSource struct {
	values []float64
	m      *Memory
}

func (s memSource) ReadWindow(shape []int, w types.Window) ([]float64, error) {
	F := types.NewField3DFrom(shape[0], shape[1], shape[2], s.values).Window(w)
	s.m.read.Add(int64(F.Len()))
	return F.Data, nil
}

// ValuesRead is the number of field values read from stored containers so far.
func (m *Memory) ValuesRead() int64 { return m.read.Load() }

func (m *Memory) Create(path string) (Writer, error) {
	return &memWriter{m: m, path: path, root: newGroup("/", "/", nil)}, nil
}

type memWriter struct {
	m    *Memory
	path string
	root *Group
}

func (w *memWriter) Group(path string) (err error) {
	_, err = w.group(path)
	return
}

func (w *memWriter) group(path string) (g *Group, err error) {
	g = w.root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		sub, ok := g.groups[part]
		if !ok {
			sub = newGroup(part, g.join(part), nil)
			g.groups[part] = sub
		}
		g = sub
	}
	return
}

func (w *memWriter) Put(path string, shape []int, v types.Value, single bool) (err error) {
	var (
		i    = strings.LastIndex(path, "/")
		g    *Group
		ds   *Dataset
		name = path[i+1:]
	)
	if g, err = w.group(path[:i]); err != nil {
		return
	}
	if ds, err = newDataset(name, shape, v.Copy(), single); err != nil {
		return
	}
	g.datasets[name] = ds
	return
}

func (w *memWriter) Close() error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.files[w.path] = w.root
	return nil
}

func (w *memWriter) Discard() error { return nil }

// Paths lists the stored containers in sorted order.
func (m *Memory) Paths() (paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path := range m.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return
}
