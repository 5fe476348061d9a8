package remotefleet

import (
	"fmt"
	"io"

	"github.com/joeycumines/starmap/taskerr"
	"github.com/pebbe/zmq4"
)

// Client is the dispatch-side connection to a Broker's frontend endpoint:
// one DEALER socket, reused across submissions.
type Client struct {
	sock *zmq4.Socket
}

// NewClient connects to a Broker's frontend endpoint.
func NewClient(frontendEndpoint string) (*Client, error) {
	sock, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		return nil, fmt.Errorf("remotefleet: creating client socket: %w", err)
	}
	if err := sock.Connect(frontendEndpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("remotefleet: connecting to %q: %w", frontendEndpoint, err)
	}
	return &Client{sock: sock}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error { return c.sock.Close() }

// Dispatch sends one TaskMessage per task and returns a Cursor that reads
// back exactly len(tasks) replies: the count-first half of the handshake
// is simply len(tasks), known up front because blocks are materialized
// before dispatch.
func (c *Client) Dispatch(tasks []TaskMessage) (*Cursor, error) {
	for _, msg := range tasks {
		payload, err := encodeFrame(msg)
		if err != nil {
			return nil, fmt.Errorf("remotefleet: encoding task %q: %w", msg.TaskName, err)
		}
		if _, err := c.sock.SendMessage(payload); err != nil {
			return nil, &taskerr.WorkerLost{Reason: fmt.Errorf("sending task %q: %w", msg.TaskName, err)}
		}
	}
	return &Cursor{sock: c.sock, remaining: len(tasks)}, nil
}

// StopWorkers sends count "stop" sentinels, one per connected worker
// goroutine, so a whole WorkerPool can be torn down cleanly: the broker's
// fair-dispatch backend hands each sentinel to a distinct idle worker.
func (c *Client) StopWorkers(count int) error {
	for i := 0; i < count; i++ {
		payload, err := encodeFrame(TaskMessage{TaskName: StopTask})
		if err != nil {
			return err
		}
		if _, err := c.sock.SendMessage(payload); err != nil {
			return &taskerr.WorkerLost{Reason: err}
		}
	}
	return nil
}

// Cursor reads back the replies to one Dispatch call, in arrival order.
type Cursor struct {
	sock      *zmq4.Socket
	remaining int
}

// Next returns the next ResultMessage, or io.EOF once every dispatched
// task has replied.
func (c *Cursor) Next() (ResultMessage, error) {
	if c.remaining <= 0 {
		return ResultMessage{}, io.EOF
	}

	frames, err := c.sock.RecvMessageBytes(0)
	if err != nil {
		return ResultMessage{}, &taskerr.WorkerLost{Reason: err}
	}
	if len(frames) != 1 {
		return ResultMessage{}, &taskerr.Corrupt{Err: fmt.Errorf("expected 1 reply frame, got %d", len(frames))}
	}

	var msg ResultMessage
	if err := decodeFrame(frames[0], &msg); err != nil {
		return ResultMessage{}, &taskerr.Corrupt{Err: err}
	}
	c.remaining--
	return msg, nil
}

// Close is a no-op; the underlying socket is owned by the Client and
// reused across submissions.
func (c *Cursor) Close() error { return nil }
