package snapshot

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/notargets/remesh/comm"
	"github.com/notargets/remesh/types"
)

// Mode selects how Open treats an existing container.
type Mode uint8

const (
	Read   Mode = iota // existing container, no writes
	Create             // new empty container, replacing any existing one
	Append             // existing container if present, writes allowed
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "r"
	case Create:
		return "w"
	}
	return "a"
}

// Driver describes how ranks attach to a container. Under DriverParallel every rank shares one open container,
// which cannot hold byte values.
type Driver uint8

const (
	DriverSerial Driver = iota
	DriverParallel
)

func (d Driver) String() string {
	if d == DriverParallel {
		return "parallel"
	}
	return "serial"
}

// Backend reads and writes containers. Load fills root and may leave 3-D float fields in the container, read on
// demand until the returned closer is closed. Create starts a replacement of the container at path, which is
// published when the writer is closed.
type Backend interface {
	Exists(path string) bool
	Load(path string, root *Group) (io.Closer, error)
	Create(path string) (Writer, error)
}

// Writer receives the groups and datasets of a container one at a time. Put creates missing parent groups.
type Writer interface {
	Group(path string) error
	Put(path string, shape []int, v types.Value, single bool) error
	Close() error
	Discard() error
}

// File is an open container. Small datasets are held in memory, fields are read from the container by window.
// Unless the file was opened in Read mode, Close writes every dataset not committed earlier, one at a time.
type File struct {
	root    *Group
	path    string
	mode    Mode
	driver  Driver
	backend Backend
	mu      sync.Mutex
	reader  io.Closer
	writer  Writer
	closed  bool
}

type Option func(f *File)

func WithDriver(d Driver) Option { return func(f *File) { f.driver = d } }

func WithBackend(b Backend) Option { return func(f *File) { f.backend = b } }

// Open opens the container at path. The HDF5 backend and the serial driver are used unless options say
// otherwise.
func Open(path string, mode Mode, opts ...Option) (f *File, err error) {
	f = &File{
		path:    path,
		mode:    mode,
		backend: HDF5{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.root = newGroup("/", "/", f)
	exists := f.backend.Exists(path)
	switch {
	case mode == Read && !exists:
		err = fmt.Errorf("container %s: %w", path, ErrNotFound)
	case mode != Create && exists:
		if f.reader, err = f.backend.Load(path, f.root); err != nil {
			err = fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err != nil {
		f = nil
	}
	return
}

// Root is the top level group.
func (f *File) Root() *Group { return f.root }

func (f *File) Path() string { return f.path }

func (f *File) Mode() Mode { return f.mode }

func (f *File) Driver() Driver { return f.driver }

func (f *File) checkWritable(v *types.Value) error {
	if f.mode == Read {
		return fmt.Errorf("%s: %w", f.path, ErrReadOnly)
	}
	if v != nil && v.Kind == types.KindBytes && f.driver == DriverParallel {
		return fmt.Errorf("%s: %w", f.path, ErrBytesUnsupported)
	}
	return nil
}

func (f *File) commit(path string, ds *Dataset) (err error) {
	if err = f.checkWritable(nil); err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("committing %s to closed %s", path, f.path)
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return f.put(path, ds)
}

// put hands ds to the writer and releases it. The caller holds f.mu and the dataset's lock.
func (f *File) put(path string, ds *Dataset) (err error) {
	if f.writer == nil {
		if f.writer, err = f.backend.Create(f.path); err != nil {
			return
		}
	}
	var v types.Value
	if v, err = ds.payload(); err != nil {
		return
	}
	if err = f.writer.Put(path, ds.shape, v, ds.single); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	ds.release()
	return
}

func (f *File) save() (err error) {
	if f.writer == nil {
		if f.writer, err = f.backend.Create(f.path); err != nil {
			return
		}
	}
	err = f.root.eachGroup(func(g *Group) error { return f.writer.Group(g.path) })
	if err == nil {
		err = f.root.each(func(path string, ds *Dataset) error {
			ds.mu.Lock()
			defer ds.mu.Unlock()
			if ds.state == committed {
				return nil
			}
			return f.put(path, ds)
		})
	}
	if err != nil {
		f.writer.Discard()
		return
	}
	return f.writer.Close()
}

// Close writes the container unless it was opened in Read mode, then releases the source. Closing twice is a
// no-op.
func (f *File) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.mode != Read {
		err = f.save()
	}
	if f.reader != nil {
		if cerr := f.reader.Close(); err == nil {
			err = cerr
		}
	}
	return
}

// Shared is a container opened once by rank 0 and attached to by every rank of a group.
type Shared struct {
	*File
	c comm.Comm
}

type opened struct {
	f   *File
	err error
}

// OpenShared opens the container on rank 0 and hands the same handle to every rank. All ranks must call it.
func OpenShared(ctx context.Context, c comm.Comm, path string, mode Mode, opts ...Option) (s *Shared, err error) {
	var o opened
	if comm.IsRoot(c) {
		o.f, o.err = Open(path, mode, opts...)
	}
	if o, err = comm.Bcast(ctx, c, 0, o); err != nil {
		return
	}
	if o.err != nil {
		err = o.err
		return
	}
	s = &Shared{File: o.f, c: c}
	return
}

// Close waits for every rank to finish writing, then rank 0 closes the container. Every rank receives the result.
func (s *Shared) Close(ctx context.Context) error { return s.CloseSerial(ctx, nil) }

// CloseSerial is Close with fn run on rank 0 just before the container is written. fn sees the serial driver, so
// it can store the byte values the parallel driver rejects.
func (s *Shared) CloseSerial(ctx context.Context, fn func(root *Group) error) (err error) {
	if err = s.c.Barrier(ctx); err != nil {
		return
	}
	var o opened
	if comm.IsRoot(s.c) {
		if fn != nil {
			s.driver = DriverSerial
			o.err = fn(s.Root())
		}
		if cerr := s.File.Close(); o.err == nil {
			o.err = cerr
		}
	}
	if o, err = comm.Bcast(ctx, s.c, 0, o); err != nil {
		return
	}
	return o.err
}
