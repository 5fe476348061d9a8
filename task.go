package starmap

import (
	"context"
	"fmt"

	"github.com/joeycumines/starmap/monitor"
)

// TaskContext is the explicit value a backend constructs per task at
// dispatch time, from the block the splitter produced. It is passed
// alongside, never inside, the task's argument tuple, so a Func never
// needs to mutate one of its own arguments to report back to the caller.
type TaskContext struct {
	// TaskNo is the 1-based, monotonic task number assigned at submission.
	TaskNo uint32

	// Weight is taken from the owning Block's total weight.
	Weight float32

	// Monitor is the telemetry handle for this task. Never nil: callers
	// that don't need telemetry get monitor.Noop{}.
	Monitor monitor.Monitor
}

// Func is the user-supplied callable run once per chunk. T is the element
// type of the chunked sequence, E is the type of the additional fixed
// arguments repeated across every task, and R is the result type folded by
// Reduce.
type Func[T, E, R any] func(ctx context.Context, tc *TaskContext, chunk []T, extra E) (R, error)

// Task names a Func and records the static argument-name vector used for
// per-position "sent" bytes bookkeeping, in place of runtime callable
// introspection (which Go's type system has no equivalent for). Positions
// left unnamed default to arg0, arg1, ....
type Task[T, E, R any] struct {
	// Name is used in progress lines and as the telemetry dataset/key name.
	// A name beginning with "_" marks a private task: progress reporting and
	// per-task telemetry persistence are silenced for it.
	Name string

	// Func is the callable to run per chunk.
	Func Func[T, E, R]

	// ArgNames optionally names the two logical argument positions (the
	// chunk, and extra) for "sent" bytes bookkeeping. Defaults to
	// {"arg0", "arg1"}.
	ArgNames []string
}

func (t Task[T, E, R]) argNames() (chunkArg, extraArg string) {
	if len(t.ArgNames) > 0 {
		chunkArg = t.ArgNames[0]
	} else {
		chunkArg = "arg0"
	}
	if len(t.ArgNames) > 1 {
		extraArg = t.ArgNames[1]
	} else {
		extraArg = "arg1"
	}
	return
}

func (t Task[T, E, R]) isPrivate() bool {
	return len(t.Name) > 0 && t.Name[0] == '_'
}

func (t Task[T, E, R]) name() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%T", t.Func)
}
