// Package starmap implements a backend-agnostic parallel map-reduce core:
// a caller splits a sequence into weighted blocks, dispatches one task
// invocation per block onto a sequential, local-pool, or remote-fleet
// backend, and folds the results through a lazy, progress-reporting
// result stream.
package starmap

import (
	"context"
	"fmt"

	"github.com/joeycumines/starmap/chunk"
	"github.com/joeycumines/starmap/memguard"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/resultstream"
	"github.com/joeycumines/starmap/taskerr"
)

// Starmap is one prepared submission: a task, its pre-split blocks, the
// fixed extra argument, and the backend it will dispatch onto.
type Starmap[T, E, R any] struct {
	engine  *Engine
	task    Task[T, E, R]
	blocks  []chunk.Block[T]
	extra   E
	monitor monitor.Monitor
	backend BackendKind
}

// New constructs a Starmap directly from pre-split blocks. Most callers
// use Apply instead, which runs the weight splitter first. backend, if
// empty, is resolved at SubmitAll time from engine's configuration,
// defaulting to BackendLocalPool. mon may be nil, in which case per-task
// telemetry is discarded.
func New[T, E, R any](engine *Engine, task Task[T, E, R], blocks []chunk.Block[T], extra E, mon monitor.Monitor, backend BackendKind) *Starmap[T, E, R] {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &Starmap[T, E, R]{engine: engine, task: task, blocks: blocks, extra: extra, monitor: mon, backend: backend}
}

// Apply runs the weight splitter over seq and constructs a Starmap from
// the resulting blocks; extra is the fixed value repeated as the second
// argument to every invocation of task.Func. A caller that leaves
// params.ConcurrentTasks unset (and isn't in max-weight mode) gets
// engine.DefaultConcurrentTasks() as the splitter's target block count,
// rather than chunk.Split's own single-block default; engine may be nil,
// in which case the single-block default stands.
func Apply[T, E, R any](engine *Engine, task Task[T, E, R], seq []T, extra E, params chunk.Params[T], mon monitor.Monitor, backend BackendKind) *Starmap[T, E, R] {
	if params.ConcurrentTasks <= 0 && params.MaxWeight <= 0 && engine != nil {
		params.ConcurrentTasks = engine.DefaultConcurrentTasks()
	}
	return New(engine, task, chunk.Split(seq, params), extra, mon, backend)
}

func (s *Starmap[T, E, R]) resolveBackend() BackendKind {
	if s.backend != "" {
		return s.backend
	}
	if s.engine != nil && s.engine.cfg.DefaultBackend != "" {
		return s.engine.cfg.DefaultBackend
	}
	return BackendLocalPool
}

// SubmitAll dispatches one task invocation per block and returns a result
// stream over the completions. A submission of zero blocks is a
// successful no-op: the returned stream yields io.EOF on its first pull.
func (s *Starmap[T, E, R]) SubmitAll(ctx context.Context) (*resultstream.Stream[R], error) {
	name := s.task.name()

	backendKind := s.resolveBackend()
	if len(s.blocks) <= 1 {
		backendKind = BackendNone
	}

	var b Backend[T, E, R]
	switch backendKind {
	case BackendNone:
		b = sequentialBackend[T, E, R]{}
	case BackendLocalPool:
		if s.engine == nil || s.engine.Pool() == nil {
			return nil, &taskerr.BackendUnavailable{Backend: string(BackendLocalPool), Err: fmt.Errorf("engine not initialized")}
		}
		b = localPoolBackend[T, E, R]{pool: s.engine.Pool()}
	case BackendRemoteFleet:
		if s.engine == nil {
			return nil, &taskerr.BackendUnavailable{Backend: string(BackendRemoteFleet), Err: fmt.Errorf("no engine configured")}
		}
		client, err := s.engine.RemoteFleet()
		if err != nil {
			return nil, &taskerr.BackendUnavailable{Backend: string(BackendRemoteFleet), Err: err}
		}
		b = remoteFleetBackend[T, E, R]{client: client}
	default:
		return nil, fmt.Errorf("starmap: unknown backend %q", backendKind)
	}

	count, sent, cursor, err := b.Dispatch(ctx, s.task, s.blocks, s.extra, s.monitor)
	if err != nil {
		return nil, err
	}

	var guard *memguard.Guard
	var log *Logger
	if s.engine != nil {
		guard = s.engine.Guard()
		log = s.engine.Logger()
	}

	return resultstream.New[R](name, count, s.monitor, guard, log, sent, cursor.Next), nil
}

// Reduce is SubmitAll(ctx).Reduce equivalent convenience: it dispatches
// the submission and folds every result into acc via combine, which must
// be commutative and associative since completion order is
// backend-dependent.
func (s *Starmap[T, E, R]) Reduce(ctx context.Context, acc R, combine func(acc, next R) R) (R, error) {
	stream, err := s.SubmitAll(ctx)
	if err != nil {
		return acc, err
	}
	return resultstream.Reduce(ctx, stream, acc, combine)
}
