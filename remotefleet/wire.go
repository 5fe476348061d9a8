// Package remotefleet implements the three-role ZeroMQ topology backing the
// remote worker fleet: a broker relaying ROUTER/DEALER frames, a worker
// pool process executing registered task handlers, and a client dispatching
// one task per submitted block and reading back exactly that many replies.
package remotefleet

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/joeycumines/starmap/envelope"
)

// StopTask is the sentinel task name that terminates a worker cleanly
// instead of being routed to a handler.
const StopTask = "stop"

// TaskMessage is one dispatched block, addressed by the name of the
// registered Handler that should run it.
type TaskMessage struct {
	TaskName string
	TaskNo   uint32
	Weight   float32
	Args     envelope.Envelope
}

// ResultMessage is a completed (or failed) TaskMessage. ErrorKind is
// non-empty exactly when the handler itself failed (including a recovered
// panic) or no handler is registered for the task name; Value is the zero
// Envelope in that case.
type ResultMessage struct {
	TaskNo      uint32
	Value       envelope.Envelope
	ErrorKind   string
	ErrorText   string
	DurationSec float64
}

func encodeFrame(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("remotefleet: encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFrame(b []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return fmt.Errorf("remotefleet: decoding frame: %w", err)
	}
	return nil
}
