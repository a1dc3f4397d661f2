package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/notargets/remesh/types"
)

// Group is a node of the container tree holding sub-groups and datasets by name.
type Group struct {
	mu       sync.RWMutex
	name     string
	path     string
	file     *File
	groups   map[string]*Group
	datasets map[string]*Dataset
}

func newGroup(name, path string, f *File) *Group {
	return &Group{
		name:     name,
		path:     path,
		file:     f,
		groups:   make(map[string]*Group),
		datasets: make(map[string]*Dataset),
	}
}

func (g *Group) Name() string { return g.name }

// Path is the absolute path of the group in its container, "/" for the root.
func (g *Group) Path() string { return g.path }

func (g *Group) join(name string) string {
	if g.path == "/" {
		return "/" + name
	}
	return g.path + "/" + name
}

// Keys returns the names of all sub-groups and datasets in sorted order.
func (g *Group) Keys() (keys []string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for name := range g.groups {
		keys = append(keys, name)
	}
	for name := range g.datasets {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return
}

// DatasetNames returns the dataset names in sorted order.
func (g *Group) DatasetNames() (names []string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for name := range g.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (g *Group) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, isGroup := g.groups[name]
	_, isDataset := g.datasets[name]
	return isGroup || isDataset
}

func (g *Group) Group(name string) (*Group, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if sub, ok := g.groups[name]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("group %q in %q: %w", name, g.name, ErrNotFound)
}

func (g *Group) Dataset(name string) (*Dataset, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if ds, ok := g.datasets[name]; ok {
		return ds, nil
	}
	return nil, fmt.Errorf("dataset %q in %q: %w", name, g.name, ErrNotFound)
}

// Lookup resolves a slash separated dataset path relative to g, e.g. "settings/nx".
func (g *Group) Lookup(path string) (ds *Dataset, err error) {
	var (
		parts = strings.Split(strings.Trim(path, "/"), "/")
		cur   = g
	)
	for _, part := range parts[:len(parts)-1] {
		if cur, err = cur.Group(part); err != nil {
			return
		}
	}
	return cur.Dataset(parts[len(parts)-1])
}

// RequireGroup returns the sub-group name, creating it when absent.
func (g *Group) RequireGroup(name string) (sub *Group, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub = g.groups[name]; sub != nil {
		return
	}
	if err = g.file.checkWritable(nil); err != nil {
		return
	}
	if _, ok := g.datasets[name]; ok {
		err = fmt.Errorf("%q in %q is a dataset, not a group", name, g.name)
		return
	}
	sub = newGroup(name, g.join(name), g.file)
	g.groups[name] = sub
	return
}

func (g *Group) add(ds *Dataset) (*Dataset, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[ds.name]; ok {
		return nil, fmt.Errorf("%q in %q is a group, not a dataset", ds.name, g.name)
	}
	g.datasets[ds.name] = ds
	return ds, nil
}

// Put stores v as the one dimensional dataset name, replacing any existing dataset.
func (g *Group) Put(name string, v types.Value, single bool) (ds *Dataset, err error) {
	if err = g.file.checkWritable(&v); err != nil {
		return
	}
	if ds, err = newDataset(name, []int{v.Len()}, v.Copy(), single); err != nil {
		return
	}
	return g.add(ds)
}

// Create declares a float dataset of the given shape under name, replacing any existing dataset. Its values read
// as zero and take memory only once a window is written.
func (g *Group) Create(name string, shape []int, single bool) (ds *Dataset, err error) {
	if err = g.file.checkWritable(nil); err != nil {
		return
	}
	ds = &Dataset{
		name:   name,
		shape:  append([]int(nil), shape...),
		value:  types.Value{Kind: types.KindFloat},
		single: single,
		state:  pending,
	}
	return g.add(ds)
}

// Commit writes the dataset name to the container now and drops its values from memory. Later reads and writes
// of the dataset fail with ErrCommitted.
func (g *Group) Commit(name string) (err error) {
	var ds *Dataset
	if ds, err = g.Dataset(name); err != nil {
		return
	}
	return g.file.commit(g.join(name), ds)
}

// Records returns the values of every dataset in g.
func (g *Group) Records() (records map[string]types.Value) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	records = make(map[string]types.Value, len(g.datasets))
	for name, ds := range g.datasets {
		records[name] = ds.Value()
	}
	return
}

// CopyTo stores a deep copy of the sub-group name into dst, replacing a sub-group of the same name.
func (g *Group) CopyTo(dst *Group, name string) (err error) {
	var src *Group
	if src, err = g.Group(name); err != nil {
		return
	}
	if err = dst.file.checkWritable(nil); err != nil {
		return
	}
	cp := src.copy(dst.file, dst.join(name))
	if err = cp.each(func(_ string, ds *Dataset) error { return dst.file.checkWritable(&ds.value) }); err != nil {
		return
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	dst.groups[name] = cp
	return
}

func (g *Group) copy(f *File, path string) (cp *Group) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cp = newGroup(g.name, path, f)
	for name, sub := range g.groups {
		cp.groups[name] = sub.copy(f, cp.join(name))
	}
	for name, ds := range g.datasets {
		cp.datasets[name] = ds.copy()
	}
	return
}

// each calls fn for every dataset below g, depth first in name order, with the dataset's path.
func (g *Group) each(fn func(path string, ds *Dataset) error) error {
	for _, name := range g.Keys() {
		if sub, err := g.Group(name); err == nil {
			if err = sub.each(fn); err != nil {
				return err
			}
			continue
		}
		ds, err := g.Dataset(name)
		if err != nil {
			return err
		}
		if err = fn(g.join(name), ds); err != nil {
			return err
		}
	}
	return nil
}

// eachGroup calls fn for g and every group below it, parents first.
func (g *Group) eachGroup(fn func(sub *Group) error) (err error) {
	if err = fn(g); err != nil {
		return
	}
	for _, name := range g.Keys() {
		if sub, gerr := g.Group(name); gerr == nil {
			if err = sub.eachGroup(fn); err != nil {
				return
			}
		}
	}
	return
}
