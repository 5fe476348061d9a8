package starmap

import "github.com/joeycumines/starmap/memguard"

// BackendKind names the dispatch strategy a submission resolves to.
type BackendKind string

const (
	// BackendNone ships task arguments in-process without encoding and runs
	// every block sequentially, same as a submission with at most one
	// block.
	BackendNone BackendKind = "none"
	// BackendLocalPool dispatches onto a fixed goroutine pool.
	BackendLocalPool BackendKind = "local-pool"
	// BackendRemoteFleet dispatches onto a ZeroMQ-routed worker fleet.
	BackendRemoteFleet BackendKind = "remote-fleet"
)

// RemoteFleetConfig addresses the broker a remote-fleet submission connects
// to.
type RemoteFleetConfig struct {
	// FrontendEndpoint is the ROUTER endpoint clients connect to, e.g.
	// "tcp://broker.internal:5555".
	FrontendEndpoint string
	// BackendEndpoint is the DEALER endpoint worker pool processes connect
	// to, e.g. "tcp://broker.internal:5556".
	BackendEndpoint string
}

// Config is the process-wide configuration surface an Engine is built
// from. There is deliberately no file-format parser here: a caller that
// wants YAML/TOML/env-var sourced configuration builds one of these and
// passes it to NewEngine; reading and parsing a config file is an external
// concern.
type Config struct {
	// DefaultBackend is consulted by Starmap.SubmitAll when a submission
	// does not name an explicit backend.
	DefaultBackend BackendKind

	// PoolSize is the local-pool worker count. Defaults to
	// runtime.GOMAXPROCS(0) (after automaxprocs has adjusted it) when <= 0.
	PoolSize int

	// MemoryThresholds configures the memory guard. Zero-value fields fall
	// back to memguard's own defaults (80/95 percent).
	MemoryThresholds memguard.Thresholds

	// RemoteFleet configures the remote-fleet backend. Only consulted when
	// a submission resolves to BackendRemoteFleet.
	RemoteFleet RemoteFleetConfig
}
