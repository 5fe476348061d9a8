// Package localpool implements a fixed-size, goroutine-based worker pool:
// the in-process backend used when a submission's task count exceeds one
// but no remote fleet is configured. Unlike a process pool, workers here
// are plain goroutines — Go has no global interpreter lock, so there is no
// need to pay fork/IPC cost to get CPU parallelism.
package localpool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of work submitted to the pool. It must itself be
// cancellation-aware if it respects ctx.
type Job func(ctx context.Context) (any, error)

// Result is one completed Job, tagged with the index it was submitted
// under so the caller can correlate it back to the originating task even
// though the pool delivers results in completion order, not submission
// order.
type Result struct {
	Index int
	Value any
	Err   error
}

type indexedJob struct {
	index int
	job   Job
}

// Pool runs Jobs across a fixed number of worker goroutines. The zero value
// is not usable; construct with New.
type Pool struct {
	size      int
	jobs      chan indexedJob
	results   chan Result
	group     *errgroup.Group
	gctx      context.Context
	cancel    context.CancelFunc
	started   bool
	closeOnce sync.Once
	closeErr  error
}

// New constructs a Pool with size worker goroutines. size <= 0 is treated
// as 1. Workers are not started until Warmup or the first Submit.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:    size,
		jobs:    make(chan indexedJob),
		results: make(chan Result, size),
	}
}

// Warmup starts all worker goroutines eagerly, so the first Submit doesn't
// pay goroutine start-up latency. Calling it more than once is a no-op.
func (p *Pool) Warmup() {
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	p.group = group
	p.gctx = gctx

	for i := 0; i < p.size; i++ {
		group.Go(p.worker)
	}
}

func (p *Pool) worker() error {
	for {
		select {
		case <-p.gctx.Done():
			return nil
		case ij, ok := <-p.jobs:
			if !ok {
				return nil
			}
			value, err := ij.job(p.gctx)
			// Deliver from a separate goroutine so an undrained Results
			// channel never stops this worker from taking the next job.
			res := Result{Index: ij.index, Value: value, Err: err}
			p.group.Go(func() error {
				select {
				case p.results <- res:
				case <-p.gctx.Done():
				}
				return nil
			})
		}
	}
}

// Submit enqueues job under index, blocking until a worker picks it up or
// ctx is canceled. Warmup is called implicitly if the pool has not started.
func (p *Pool) Submit(ctx context.Context, index int, job Job) error {
	p.Warmup()
	select {
	case p.jobs <- indexedJob{index: index, job: job}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.gctx.Done():
		return fmt.Errorf("localpool: pool closed while submitting task %d", index)
	}
}

// Results returns the channel Submit'd jobs complete on. Exactly one Result
// is sent per successful Submit call.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting new work and terminates every worker goroutine.
// In-flight jobs observe context cancellation via the ctx passed to their
// Job. Callers must not call Submit concurrently with or after Close.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		if !p.started {
			return
		}
		p.cancel()
		close(p.jobs)
		p.closeErr = p.group.Wait()
	})
	return p.closeErr
}
