package localpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllJobs(t *testing.T) {
	p := New(4)
	defer p.Close()

	const n = 20
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, p.Submit(context.Background(), i, func(ctx context.Context) (any, error) {
			return i * i, nil
		}))
	}

	seen := make(map[int]int, n)
	for len(seen) < n {
		r := <-p.Results()
		require.NoError(t, r.Err)
		seen[r.Index] = r.Value.(int)
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, i*i, seen[i])
	}
}

func TestPoolPropagatesJobError(t *testing.T) {
	p := New(2)
	defer p.Close()

	boom := assert.AnError
	require.NoError(t, p.Submit(context.Background(), 0, func(ctx context.Context) (any, error) {
		return nil, boom
	}))
	r := <-p.Results()
	assert.Equal(t, boom, r.Err)
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := New(2)
	p.Warmup()
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestPoolCloseWithoutWarmup(t *testing.T) {
	p := New(2)
	assert.NoError(t, p.Close())
}
