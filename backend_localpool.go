package starmap

import (
	"context"
	"io"

	"github.com/joeycumines/starmap/chunk"
	"github.com/joeycumines/starmap/localpool"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/resultstream"
	"github.com/joeycumines/starmap/safecall"
	"github.com/joeycumines/starmap/taskerr"
)

// localPoolBackend dispatches every block onto an *Engine's goroutine
// pool. Blocks are shipped as closures, not envelopes: goroutines share
// the process heap, so there is nothing to serialize (unlike the original
// system's OS-process pool).
type localPoolBackend[T, E, R any] struct {
	pool *localpool.Pool
}

func (b localPoolBackend[T, E, R]) Dispatch(ctx context.Context, task Task[T, E, R], blocks []chunk.Block[T], extra E, mon monitor.Monitor) (int, map[string]int64, Cursor[R], error) {
	for i, block := range blocks {
		block := block
		taskNo := uint32(i + 1)
		tc := &TaskContext{TaskNo: taskNo, Weight: float32(block.Weight), Monitor: mon}
		if err := b.pool.Submit(ctx, i, func(jobCtx context.Context) (any, error) {
			return safecall.Run(func() (R, error) {
				return task.Func(jobCtx, tc, block.Items, extra)
			}), nil
		}); err != nil {
			return 0, nil, nil, &taskerr.BackendUnavailable{Backend: string(BackendLocalPool), Err: err}
		}
	}
	return len(blocks), nil, &localPoolCursor[T, E, R]{pool: b.pool, blocks: blocks, remaining: len(blocks)}, nil
}

type localPoolCursor[T, E, R any] struct {
	pool      *localpool.Pool
	blocks    []chunk.Block[T]
	remaining int
}

func (c *localPoolCursor[T, E, R]) Next(ctx context.Context) (resultstream.Item[R], error) {
	if c.remaining <= 0 {
		return resultstream.Item[R]{}, io.EOF
	}
	select {
	case res := <-c.pool.Results():
		c.remaining--
		out := res.Value.(safecall.Outcome[R])
		taskNo := uint32(res.Index + 1)
		return outcomeToItem[R](taskNo, c.blocks[res.Index].Weight, out), nil
	case <-ctx.Done():
		return resultstream.Item[R]{}, ctx.Err()
	}
}

func (c *localPoolCursor[T, E, R]) Close() error { return nil }
