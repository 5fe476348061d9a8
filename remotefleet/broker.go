package remotefleet

import (
	"context"
	"fmt"

	"github.com/pebbe/zmq4"
)

// Broker binds two endpoints and fair-dispatches client requests to
// whichever worker is ready, relaying replies back to the client that sent
// the matching request. The frontend (ROUTER) stamps every inbound message
// with the sending client's identity frame; the backend (DEALER) fans
// requests out round-robin to connected workers. zmq4.Proxy does the frame
// relaying in both directions, preserving identity frames untouched.
type Broker struct {
	frontend *zmq4.Socket
	backend  *zmq4.Socket
}

// NewBroker binds frontendEndpoint (clients connect here) and
// backendEndpoint (worker pool processes connect here).
func NewBroker(frontendEndpoint, backendEndpoint string) (*Broker, error) {
	frontend, err := zmq4.NewSocket(zmq4.ROUTER)
	if err != nil {
		return nil, fmt.Errorf("remotefleet: creating frontend socket: %w", err)
	}
	if err := frontend.Bind(frontendEndpoint); err != nil {
		_ = frontend.Close()
		return nil, fmt.Errorf("remotefleet: binding frontend %q: %w", frontendEndpoint, err)
	}

	backend, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		_ = frontend.Close()
		return nil, fmt.Errorf("remotefleet: creating backend socket: %w", err)
	}
	if err := backend.Bind(backendEndpoint); err != nil {
		_ = frontend.Close()
		_ = backend.Close()
		return nil, fmt.Errorf("remotefleet: binding backend %q: %w", backendEndpoint, err)
	}

	return &Broker{frontend: frontend, backend: backend}, nil
}

// Run relays messages until ctx is canceled or the proxy itself errors
// (e.g. one of the sockets was closed from another goroutine).
func (b *Broker) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- zmq4.Proxy(b.frontend, b.backend, nil) }()

	select {
	case <-ctx.Done():
		_ = b.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Close releases both sockets. Safe to call once Run has returned or to
// force Run to return early.
func (b *Broker) Close() error {
	ferr := b.frontend.Close()
	berr := b.backend.Close()
	if ferr != nil {
		return ferr
	}
	return berr
}
