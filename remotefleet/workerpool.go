package remotefleet

import (
	"context"
	"fmt"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/starmap/envelope"
	"github.com/joeycumines/starmap/safecall"
	"github.com/pebbe/zmq4"
	"golang.org/x/sync/errgroup"
)

// TaskContext carries the per-task metadata a Handler needs; it is the
// wire-safe subset of starmap.TaskContext (no Monitor field — a live
// telemetry handle has no meaningful serialization across a process
// boundary, so duration is reported back via ResultMessage instead and
// recorded client-side).
type TaskContext struct {
	TaskNo uint32
	Weight float32
}

// Handler runs one registered task name against its encoded arguments.
type Handler func(ctx context.Context, tc TaskContext, args envelope.Envelope) (envelope.Envelope, error)

// Registry maps task names to Handlers, populated identically by every
// worker pool process in a fleet (and usually by the client process too,
// since it is the same binary running in a different mode).
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under name, overwriting any previous handler for that
// name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

func (r *Registry) lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// WorkerPool connects size DEALER sockets to a Broker's backend endpoint
// and executes incoming TaskMessages against registry, under the safe-call
// wrapper, until ctx is canceled or a "stop" sentinel is received.
type WorkerPool struct {
	endpoint string
	size     int
	registry *Registry
	log      *logiface.Logger[logiface.Event]
}

// NewWorkerPool constructs a WorkerPool. size <= 0 is treated as 1.
func NewWorkerPool(endpoint string, size int, registry *Registry, log *logiface.Logger[logiface.Event]) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{endpoint: endpoint, size: size, registry: registry, log: log}
}

// Run blocks until every worker goroutine exits: each on its own stop
// sentinel, ctx cancellation, or the first connection-level error. A worker
// checks ctx only between messages; one waiting in a receive does not
// return until its next message arrives or the receive fails.
func (w *WorkerPool) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.size; i++ {
		group.Go(func() error { return w.worker(gctx) })
	}
	return group.Wait()
}

func (w *WorkerPool) worker(ctx context.Context) error {
	sock, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		return fmt.Errorf("remotefleet: creating worker socket: %w", err)
	}
	defer func() { _ = sock.Close() }()

	if err := sock.Connect(w.endpoint); err != nil {
		return fmt.Errorf("remotefleet: connecting worker to %q: %w", w.endpoint, err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		frames, err := sock.RecvMessageBytes(0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("remotefleet: worker receive: %w", err)
		}
		if len(frames) != 2 {
			w.log.Warning().Int(`frames`, len(frames)).Log(`dropping malformed task frame`)
			continue
		}
		identity, payload := frames[0], frames[1]

		var msg TaskMessage
		if err := decodeFrame(payload, &msg); err != nil {
			w.log.Warning().Err(err).Log(`dropping undecodable task frame`)
			continue
		}
		if msg.TaskName == StopTask {
			return nil
		}

		reply := w.execute(ctx, msg)
		replyBytes, err := encodeFrame(reply)
		if err != nil {
			w.log.Err().Err(err).Log(`failed to encode result message`)
			continue
		}
		if _, err := sock.SendMessage(identity, replyBytes); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("remotefleet: worker send: %w", err)
		}
	}
}

func (w *WorkerPool) execute(ctx context.Context, msg TaskMessage) ResultMessage {
	result := ResultMessage{TaskNo: msg.TaskNo}

	handler, ok := w.registry.lookup(msg.TaskName)
	if !ok {
		result.ErrorKind = "UnknownTask"
		result.ErrorText = fmt.Sprintf("no handler registered for task %q", msg.TaskName)
		return result
	}

	out := safecall.Run(func() (envelope.Envelope, error) {
		return handler(ctx, TaskContext{TaskNo: msg.TaskNo, Weight: msg.Weight}, msg.Args)
	})
	result.DurationSec = out.Duration.Seconds()
	if out.Err != nil {
		result.ErrorKind = fmt.Sprintf("%T", out.Err)
		result.ErrorText = out.Err.Error()
		return result
	}
	result.Value = out.Value
	return result
}
