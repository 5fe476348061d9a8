package starmap

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/joeycumines/starmap/chunk"
	"github.com/joeycumines/starmap/envelope"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/remotefleet"
	"github.com/joeycumines/starmap/resultstream"
	"github.com/joeycumines/starmap/taskerr"
)

// argsTuple is the wire shape of one task's arguments: the chunk and the
// fixed "extra" value repeated across every task in a submission. Its
// exported field names double as the keys envelope.Sizes reports, which
// backend_remotefleet.go maps onto the task's own argument names for the
// "sent" bytes-per-position accounting.
type argsTuple[T, E any] struct {
	Chunk []T
	Extra E
}

// RegisterRemoteTask registers task's Func as a remotefleet.Handler under
// task's name. The client process and every worker pool process must
// register the same tasks identically, since they are the same compiled
// binary running in different roles; there is no cross-language callable
// reference to ship over the wire.
func RegisterRemoteTask[T, E, R any](registry *remotefleet.Registry, task Task[T, E, R]) {
	// argsTuple travels inside an interface-typed gob stream, so gob must
	// know its concrete type on both ends.
	gob.Register(argsTuple[T, E]{})
	registry.Register(task.name(), func(ctx context.Context, tc remotefleet.TaskContext, args envelope.Envelope) (envelope.Envelope, error) {
		var tuple argsTuple[T, E]
		if err := envelope.DecodeInto(args, &tuple); err != nil {
			return envelope.Envelope{}, err
		}
		// Duration is measured and reported back via ResultMessage by the
		// worker pool itself; the Monitor a worker-side TaskContext carries
		// is always Noop, since there is no live telemetry sink connection
		// to a remote process.
		workerTC := &TaskContext{TaskNo: tc.TaskNo, Weight: tc.Weight, Monitor: monitor.Noop{}}
		result, err := task.Func(ctx, workerTC, tuple.Chunk, tuple.Extra)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.Encode(result)
	})
}

// remoteFleetBackend dispatches every block over a remotefleet.Client
// connection, encoding arguments into the wire's (chunk, extra) tuple
// shape and decoding results back into R.
type remoteFleetBackend[T, E, R any] struct {
	client *remotefleet.Client
}

func (b remoteFleetBackend[T, E, R]) Dispatch(ctx context.Context, task Task[T, E, R], blocks []chunk.Block[T], extra E, mon monitor.Monitor) (int, map[string]int64, Cursor[R], error) {
	chunkArg, extraArg := task.argNames()
	sent := make(map[string]int64, 2)
	messages := make([]remotefleet.TaskMessage, len(blocks))

	for i, block := range blocks {
		tuple := argsTuple[T, E]{Chunk: block.Items, Extra: extra}

		_, perField, err := envelope.Sizes(tuple)
		if err != nil {
			return 0, nil, nil, &taskerr.NotSerializable{TaskName: task.name(), TypeName: fmt.Sprintf("%T", tuple), Err: err}
		}
		sent[chunkArg] += int64(perField["Chunk"])
		sent[extraArg] += int64(perField["Extra"])

		args, err := envelope.Encode(tuple)
		if err != nil {
			return 0, nil, nil, &taskerr.NotSerializable{TaskName: task.name(), TypeName: fmt.Sprintf("%T", tuple), Err: err}
		}

		messages[i] = remotefleet.TaskMessage{
			TaskName: task.name(),
			TaskNo:   uint32(i + 1),
			Weight:   float32(block.Weight),
			Args:     args,
		}
	}

	cursor, err := b.client.Dispatch(messages)
	if err != nil {
		return 0, nil, nil, &taskerr.BackendUnavailable{Backend: string(BackendRemoteFleet), Err: err}
	}

	return len(blocks), sent, &remoteFleetCursor[T, R]{cursor: cursor, blocks: blocks}, nil
}

type remoteFleetCursor[T, R any] struct {
	cursor *remotefleet.Cursor
	blocks []chunk.Block[T]
}

func (c *remoteFleetCursor[T, R]) Next(ctx context.Context) (resultstream.Item[R], error) {
	msg, err := c.cursor.Next()
	if err != nil {
		return resultstream.Item[R]{}, err
	}

	var weight float64
	if idx := int(msg.TaskNo) - 1; idx >= 0 && idx < len(c.blocks) {
		weight = c.blocks[idx].Weight
	}

	item := resultstream.Item[R]{
		Info: monitor.TaskInfoRow{TaskNo: msg.TaskNo, Weight: float32(weight), Duration: float32(msg.DurationSec)},
	}
	if msg.ErrorKind != "" {
		item.ErrorKind = msg.ErrorKind
		item.Err = errors.New(msg.ErrorText)
		return item, nil
	}

	value, err := envelope.Decode(msg.Value)
	if err != nil {
		return resultstream.Item[R]{}, err
	}
	typed, ok := value.(R)
	if !ok {
		return resultstream.Item[R]{}, &taskerr.Corrupt{Err: fmt.Errorf("remote result has unexpected type %T", value)}
	}
	item.Value = typed
	item.ReceivedLen = int64(msg.Value.Size())
	return item, nil
}

func (c *remoteFleetCursor[T, R]) Close() error { return nil }
