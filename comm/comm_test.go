package comm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier(t *testing.T) {
	var (
		size    = 5
		counter atomic.Int64
		seen    = make([][]int64, size)
	)
	err := Run(context.Background(), size, func(ctx context.Context, c Comm) error {
		for step := 0; step < 4; step++ {
			counter.Add(1)
			if err := c.Barrier(ctx); err != nil {
				return err
			}
			// No rank can pass the barrier before every rank incremented
			seen[c.Rank()] = append(seen[c.Rank()], counter.Load())
			if err := c.Barrier(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	for r := range seen {
		assert.Equal(t, []int64{5, 10, 15, 20}, seen[r])
	}
}

func TestBcast(t *testing.T) {
	var (
		mu  sync.Mutex
		got = make(map[int][]string)
	)
	err := Run(context.Background(), 4, func(ctx context.Context, c Comm) error {
		for _, msg := range []string{"settings", "grid"} {
			v, err := Bcast(ctx, c, 0, msg+"-from-"+string(rune('0'+c.Rank())))
			if err != nil {
				return err
			}
			mu.Lock()
			got[c.Rank()] = append(got[c.Rank()], v)
			mu.Unlock()
		}
		_, err := c.Bcast(ctx, 9, nil)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < 4; r++ {
		assert.Equal(t, []string{"settings-from-0", "grid-from-0"}, got[r])
	}
}

func TestRunCancels(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		if c.Rank() == 1 {
			return boom
		}
		// The remaining ranks would wait forever without cancellation
		return c.Barrier(ctx)
	})
	assert.ErrorIs(t, err, boom)
}

func TestSingle(t *testing.T) {
	c := Single()
	assert.True(t, IsRoot(c))
	assert.True(t, IsReporter(c))
	v, err := Bcast(context.Background(), c, 0, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Barrier(ctx), context.Canceled)
	assert.Error(t, Run(context.Background(), 0, nil))
	calls := 0
	require.NoError(t, Run(context.Background(), 1, func(ctx context.Context, c Comm) error {
		calls++
		assert.Equal(t, 1, c.Size())
		return nil
	}))
	assert.Equal(t, 1, calls)
}
