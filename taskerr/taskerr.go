// Package taskerr defines the error taxonomy shared by every starmap
// backend: local, pooled, or fleet-dispatched failures all surface through
// one of these types so a consumer of resultstream.Stream can type-switch
// on a stable set of kinds rather than backend-specific errors.
package taskerr

import "fmt"

// NotSerializable is raised locally, at submission, when an argument or
// result cannot be encoded by the envelope codec.
type NotSerializable struct {
	TaskName string
	TypeName string
	Err      error
}

func (e *NotSerializable) Error() string {
	return fmt.Sprintf("taskerr: task %q: value of type %q is not serializable: %v", e.TaskName, e.TypeName, e.Err)
}

func (e *NotSerializable) Unwrap() error { return e.Err }

// Corrupt is raised by the envelope codec when a byte string is malformed.
type Corrupt struct {
	Err error
}

func (e *Corrupt) Error() string { return fmt.Sprintf("taskerr: corrupt envelope: %v", e.Err) }

func (e *Corrupt) Unwrap() error { return e.Err }

// RemoteTaskError wraps an exception raised by the user callable inside a
// worker. Kind carries the remote failure's category name (e.g. the Go
// panic value's type, or a caller-supplied category string); Description
// is the human-readable message.
type RemoteTaskError struct {
	Kind        string
	Description string
}

func (e *RemoteTaskError) Error() string {
	return fmt.Sprintf("taskerr: remote task error (%s): %s", e.Kind, e.Description)
}

// WorkerLost indicates a backend-level connection or liveness failure: a
// local-pool worker goroutine died unexpectedly, or a remote-fleet
// connection was dropped mid-flight.
type WorkerLost struct {
	Reason error
}

func (e *WorkerLost) Error() string { return fmt.Sprintf("taskerr: worker lost: %v", e.Reason) }

func (e *WorkerLost) Unwrap() error { return e.Reason }

// MemoryExhausted is raised when the hard memory threshold is crossed on
// the client consuming a resultstream.Stream. It is fatal and aborts
// iteration immediately.
type MemoryExhausted struct {
	UsedPercent  float64
	HardPercent  float64
	Hostname     string
}

func (e *MemoryExhausted) Error() string {
	return fmt.Sprintf("taskerr: memory exhausted on %s: using %.1f%% (allowed %.1f%%)",
		e.Hostname, e.UsedPercent, e.HardPercent)
}

// SoftMemoryWarning is not an error in the Go sense (it is never returned
// from a function that can otherwise succeed); it is the payload passed to
// a logger when the soft memory threshold is crossed. It implements error
// only so it can flow through the same logging call sites as the other
// kinds, never through a return path that aborts work.
type SoftMemoryWarning struct {
	UsedPercent float64
	SoftPercent float64
	Hostname    string
}

func (e *SoftMemoryWarning) Error() string {
	return fmt.Sprintf("taskerr: using over %.1f%% of memory on %s (soft threshold %.1f%%)",
		e.UsedPercent, e.Hostname, e.SoftPercent)
}

// BackendUnavailable indicates the selected backend could not be brought
// up: local pool initialization failed, or the remote-fleet broker is
// unreachable. Fatal at submission time.
type BackendUnavailable struct {
	Backend string
	Err     error
}

func (e *BackendUnavailable) Error() string {
	return fmt.Sprintf("taskerr: backend %q unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailable) Unwrap() error { return e.Err }
