package starmap

import (
	"context"
	"fmt"
	"io"

	"github.com/joeycumines/starmap/chunk"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/resultstream"
	"github.com/joeycumines/starmap/safecall"
)

// Cursor is the pull-based completion interface a Backend returns: one
// Item per dispatched block, in whatever order the backend completes them.
// It unifies sequential, local-pool, and remote-fleet dispatch behind one
// shape so resultstream.Stream never needs to know which backend produced
// its input.
type Cursor[R any] interface {
	// Next returns the next completed block, or io.EOF once every
	// dispatched block has been delivered.
	Next(ctx context.Context) (resultstream.Item[R], error)
	// Close releases backend-specific resources. Safe to call multiple
	// times.
	Close() error
}

// Backend dispatches one task invocation per block and returns a Cursor
// over the completions, the submitted count (the count-first half of the
// dispatch handshake), and the bytes-sent-per-argument-position snapshot
// (nil for backends that don't cross a serialization boundary).
type Backend[T, E, R any] interface {
	Dispatch(ctx context.Context, task Task[T, E, R], blocks []chunk.Block[T], extra E, mon monitor.Monitor) (count int, sent map[string]int64, cursor Cursor[R], err error)
}

// sequentialBackend runs every block on the calling goroutine, in order.
// Used when a submission has at most one block, or the engine's backend
// selector resolves to BackendNone.
type sequentialBackend[T, E, R any] struct{}

type sequentialCursor[T, E, R any] struct {
	ctx    context.Context
	task   Task[T, E, R]
	blocks []chunk.Block[T]
	extra  E
	mon    monitor.Monitor
	next   int
}

func (sequentialBackend[T, E, R]) Dispatch(ctx context.Context, task Task[T, E, R], blocks []chunk.Block[T], extra E, mon monitor.Monitor) (int, map[string]int64, Cursor[R], error) {
	return len(blocks), nil, &sequentialCursor[T, E, R]{ctx: ctx, task: task, blocks: blocks, extra: extra, mon: mon}, nil
}

func (c *sequentialCursor[T, E, R]) Next(context.Context) (resultstream.Item[R], error) {
	if c.next >= len(c.blocks) {
		return resultstream.Item[R]{}, io.EOF
	}
	block := c.blocks[c.next]
	taskNo := uint32(c.next + 1)
	c.next++

	tc := &TaskContext{TaskNo: taskNo, Weight: float32(block.Weight), Monitor: c.mon}
	out := safecall.Run(func() (R, error) {
		return c.task.Func(c.ctx, tc, block.Items, c.extra)
	})
	return outcomeToItem[R](taskNo, block.Weight, out), nil
}

func (c *sequentialCursor[T, E, R]) Close() error { return nil }

// outcomeToItem adapts a safecall.Outcome into a resultstream.Item, shared
// by every backend's Cursor implementation so the (value, error_kind,
// duration) shape is assembled identically regardless of where the task
// actually ran.
func outcomeToItem[R any](taskNo uint32, weight float64, out safecall.Outcome[R]) resultstream.Item[R] {
	item := resultstream.Item[R]{
		Value: out.Value,
		Info:  monitor.TaskInfoRow{TaskNo: taskNo, Weight: float32(weight), Duration: float32(out.Duration.Seconds())},
	}
	if out.Err != nil {
		item.Err = out.Err
		item.ErrorKind = fmt.Sprintf("%T", out.Err)
	}
	return item
}
