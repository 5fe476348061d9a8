package starmap

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/starmap/localpool"
	"github.com/joeycumines/starmap/memguard"
	"github.com/joeycumines/starmap/remotefleet"
	"go.uber.org/automaxprocs/maxprocs"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the Logger an Engine and every Starmap built from it logs
// through. The default is nil: a nil *Logger is a valid, silent no-op (see
// Logger), so this package never forces a logging backend on a caller who
// doesn't supply one.
func WithLogger(log *Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine owns the process-wide state a submission needs: the memory guard,
// the local worker pool (brought up lazily by Init), and a remote-fleet
// client (connected lazily on first use). Unlike the package-level
// singletons it replaces, an Engine is an explicit value a caller
// constructs and threads through its own code; nothing here is global
// mutable state.
type Engine struct {
	cfg   Config
	log   *Logger
	guard *memguard.Guard

	mu               sync.Mutex
	initialized      bool
	pool             *localpool.Pool
	undoMaxProc      func()
	resolvedPoolSize int

	fleetMu sync.Mutex
	fleet   *remotefleet.Client
}

// NewEngine constructs an Engine from cfg. It does not start any
// goroutines or connect anything; call Init to bring up the local pool.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		guard: memguard.New(cfg.MemoryThresholds),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init idempotently brings up the local pool and tunes the process for its
// container's CPU/memory limits. poolSize overrides Config.PoolSize when
// positive; otherwise Config.PoolSize is used, falling back to
// runtime.GOMAXPROCS(0) once automaxprocs has had a chance to correct it
// for a cgroup CPU quota.
//
// Every worker is "woken" with a trivial round-trip before Init returns,
// so the cost of first goroutine scheduling doesn't land on the first real
// task of a short job.
func (e *Engine) Init(poolSize int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		e.log.Debug().Logf(format, args...)
	}))
	if err != nil {
		e.log.Warning().Err(err).Log(`automaxprocs: failed to adjust GOMAXPROCS for cgroup quota`)
		undo = func() {}
	}
	e.undoMaxProc = undo

	if _, err := memlimit.SetGoMemLimitWithOpts(); err != nil {
		e.log.Debug().Err(err).Log(`automemlimit: no cgroup memory limit detected, leaving GOMEMLIMIT unset`)
	}

	if poolSize <= 0 {
		poolSize = e.cfg.PoolSize
	}
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}

	e.pool = localpool.New(poolSize)
	e.pool.Warmup()
	if err := e.wakeWorkers(poolSize); err != nil {
		return fmt.Errorf("starmap: waking local pool workers: %w", err)
	}

	e.resolvedPoolSize = poolSize
	e.initialized = true
	return nil
}

// DefaultConcurrentTasks returns the splitter's target block count for a
// submission that doesn't set chunk.Params.ConcurrentTasks explicitly:
// 3x the effective local-pool worker count, so a submission's blocks
// outnumber the workers that will drain them and no worker goes idle
// waiting on a straggler. Safe to call before Init; falls back to
// 3*runtime.GOMAXPROCS(0) directly in that case.
func (e *Engine) DefaultConcurrentTasks() int {
	e.mu.Lock()
	n := e.resolvedPoolSize
	e.mu.Unlock()
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n <= 0 {
		n = 1
	}
	return 3 * n
}

// wakeWorkers round-trips one trivial job per worker through the pool,
// forcing every goroutine to actually be scheduled at least once before
// Init returns.
func (e *Engine) wakeWorkers(poolSize int) error {
	ctx := context.Background()
	for i := 0; i < poolSize; i++ {
		if err := e.pool.Submit(ctx, i, func(context.Context) (any, error) {
			return nil, nil
		}); err != nil {
			return err
		}
	}
	for i := 0; i < poolSize; i++ {
		<-e.pool.Results()
	}
	return nil
}

// Pool returns the local worker pool, or nil if Init has not been called.
func (e *Engine) Pool() *localpool.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool
}

// Guard returns the Engine's memory guard.
func (e *Engine) Guard() *memguard.Guard { return e.guard }

// Logger returns the Engine's logger. May be nil; see Logger.
func (e *Engine) Logger() *Logger { return e.log }

// Config returns the Engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// RemoteFleet lazily connects to the configured remote-fleet broker,
// reusing the connection across calls.
func (e *Engine) RemoteFleet() (*remotefleet.Client, error) {
	e.fleetMu.Lock()
	defer e.fleetMu.Unlock()
	if e.fleet != nil {
		return e.fleet, nil
	}
	client, err := remotefleet.NewClient(e.cfg.RemoteFleet.FrontendEndpoint)
	if err != nil {
		return nil, err
	}
	e.fleet = client
	return client, nil
}

// Shutdown idempotently drains and releases the local pool and any
// remote-fleet connection. Safe to call even if Init was never called.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	pool := e.pool
	e.pool = nil
	undo := e.undoMaxProc
	e.undoMaxProc = nil
	e.initialized = false
	e.resolvedPoolSize = 0
	e.mu.Unlock()

	var poolErr error
	if pool != nil {
		poolErr = pool.Close()
	}
	if undo != nil {
		undo()
	}

	e.fleetMu.Lock()
	fleet := e.fleet
	e.fleet = nil
	e.fleetMu.Unlock()

	var fleetErr error
	if fleet != nil {
		fleetErr = fleet.Close()
	}

	if poolErr != nil {
		return poolErr
	}
	return fleetErr
}
