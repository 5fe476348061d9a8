// Package safecall wraps a unit of user-supplied work so that a panic never
// takes down a worker goroutine or a worker process. Both localpool and
// remotefleet route every task invocation through Run, so the two backends
// report failures through the same taskerr.RemoteTaskError shape regardless
// of where the work actually executed.
package safecall

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/joeycumines/starmap/taskerr"
)

// Outcome is the result of one guarded call: either Value is set and Err is
// nil, or Err is set (a *taskerr.RemoteTaskError for a recovered panic, or
// whatever error the callable itself returned) and Value is whatever the
// callable returned alongside it (the zero value for a recovered panic).
// Duration is always populated, even on failure.
type Outcome[R any] struct {
	Value    R
	Err      error
	Duration time.Duration
}

// Run calls fn, recovering any panic and converting it into a
// *taskerr.RemoteTaskError carrying the panic value's type name and a
// captured stack trace as its description.
func Run[R any](fn func() (R, error)) (out Outcome[R]) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			var zero R
			out.Value = zero
			out.Err = &taskerr.RemoteTaskError{
				Kind:        fmt.Sprintf("%T", r),
				Description: fmt.Sprintf("%v\n%s", r, debug.Stack()),
			}
		}
	}()
	out.Value, out.Err = fn()
	return out
}
