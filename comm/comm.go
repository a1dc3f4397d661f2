package comm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Comm is one rank's view of an SPMD process group. Every rank runs the same control flow and meets the others
// at Barrier. Blocking calls return the context error once the group is cancelled.
type Comm interface {
	Rank() int
	Size() int
	Barrier(ctx context.Context) error
	// Bcast returns root's v on every rank.
	Bcast(ctx context.Context, root int, v any) (any, error)
}

// Bcast is the typed form of Comm.Bcast.
func Bcast[T any](ctx context.Context, c Comm, root int, v T) (r T, err error) {
	var got any
	if got, err = c.Bcast(ctx, root, v); err != nil {
		return
	}
	r = got.(T)
	return
}

// IsRoot reports whether c is rank 0, the rank that authors shared metadata.
func IsRoot(c Comm) bool { return c.Rank() == 0 }

// IsReporter reports whether c prints progress: the first and the last rank.
func IsReporter(c Comm) bool { return c.Rank() == 0 || c.Rank() == c.Size()-1 }

type single struct{}

// Single returns the group of one rank.
func Single() Comm { return single{} }

func (single) Rank() int { return 0 }

func (single) Size() int { return 1 }

func (single) Barrier(ctx context.Context) error { return ctx.Err() }

func (single) Bcast(ctx context.Context, root int, v any) (any, error) { return v, ctx.Err() }

// mailDepth is the number of broadcasts a rank may fall behind the root.
const mailDepth = 64

type group struct {
	size    int
	mu      sync.Mutex
	arrived int
	release chan struct{}
	mail    []chan any // one inbox per rank
}

func newGroup(size int) (g *group) {
	g = &group{
		size:    size,
		release: make(chan struct{}),
		mail:    make([]chan any, size),
	}
	for r := range g.mail {
		g.mail[r] = make(chan any, mailDepth)
	}
	return
}

func (g *group) barrier(ctx context.Context) error {
	g.mu.Lock()
	release := g.release
	g.arrived++
	if g.arrived == g.size {
		g.arrived = 0
		g.release = make(chan struct{})
		close(release)
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type rank struct {
	rank int
	g    *group
}

func (r *rank) Rank() int { return r.rank }

func (r *rank) Size() int { return r.g.size }

func (r *rank) Barrier(ctx context.Context) error { return r.g.barrier(ctx) }

func (r *rank) Bcast(ctx context.Context, root int, v any) (any, error) {
	if root < 0 || root >= r.g.size {
		return nil, fmt.Errorf("broadcast root %d outside group of %d", root, r.g.size)
	}
	if r.rank == root {
		for target, inbox := range r.g.mail {
			if target == root {
				continue
			}
			select {
			case inbox <- v:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return v, nil
	}
	select {
	case got := <-r.g.mail[r.rank]:
		return got, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts size ranks, one goroutine each, and waits for all of them. The first error cancels the context seen
// by the other ranks and is returned.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c Comm) error) error {
	if size < 1 {
		return fmt.Errorf("group size must be positive, have %d", size)
	}
	if size == 1 {
		return fn(ctx, Single())
	}
	var (
		g       = newGroup(size)
		eg, gtx = errgroup.WithContext(ctx)
	)
	for r := 0; r < size; r++ {
		c := &rank{rank: r, g: g}
		eg.Go(func() error { return fn(gtx, c) })
	}
	return eg.Wait()
}
