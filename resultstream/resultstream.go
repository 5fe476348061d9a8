// Package resultstream implements the lazy result iterator: it pulls
// completed tasks from whichever backend is dispatching them, checks
// memory pressure on every pull, surfaces remote failures, reports
// progress, and accounts for transfer bytes.
package resultstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/starmap/memguard"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/taskerr"
)

// Item is one backend-agnostic completed task, as fed into a Stream by
// whichever backend produced it. A non-nil Fatal means the backend itself
// failed (a lost worker, a broken broker connection) rather than the user
// callable; the Stream re-raises Fatal immediately and stops.
type Item[R any] struct {
	Value       R
	ErrorKind   string
	Err         error
	Fatal       error
	ReceivedLen int64
	Info        monitor.TaskInfoRow
}

// Source pulls the next Item from a backend. It returns io.EOF once every
// submitted task has been delivered.
type Source[R any] func(ctx context.Context) (Item[R], error)

// Stream is a pull-based iterator over one submission's results.
type Stream[R any] struct {
	taskName string
	private  bool
	expected int
	source   Source[R]
	monitor  monitor.Monitor
	guard    *memguard.Guard
	log      *logiface.Logger[logiface.Event]
	sent     map[string]int64

	done          int
	lastPercent   int
	receivedTotal int64
	receivedMax   int64
	closed        bool
}

// New constructs a Stream. expected is the submitted task count (the
// count-first value in the dispatch handshake). sent is the snapshot of
// outgoing bytes-per-argument-position recorded at submission time; it is
// persisted verbatim alongside the stream's own received-bytes accounting
// once the stream is exhausted.
func New[R any](
	taskName string,
	expected int,
	mon monitor.Monitor,
	guard *memguard.Guard,
	log *logiface.Logger[logiface.Event],
	sent map[string]int64,
	source Source[R],
) *Stream[R] {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &Stream[R]{
		taskName: taskName,
		private:  len(taskName) > 0 && taskName[0] == '_',
		expected: expected,
		source:   source,
		monitor:  mon,
		guard:    guard,
		log:      log,
		sent:     sent,
	}
}

// Next returns the next result, or io.EOF once the stream is exhausted.
// Every pull is preceded by a memory guard check; a hard-limit breach
// aborts iteration with *taskerr.MemoryExhausted regardless of how many
// tasks remain.
func (s *Stream[R]) Next(ctx context.Context) (R, error) {
	var zero R
	if s.closed {
		return zero, io.EOF
	}

	if s.guard != nil {
		if warning, err := s.guard.Check(); err != nil {
			s.closed = true
			return zero, err
		} else if warning != nil {
			s.log.Warning().Err(warning).Log(`memory usage above soft threshold`)
		}
	}

	item, err := s.source(ctx)
	if errors.Is(err, io.EOF) {
		s.closed = true
		s.emitSummary()
		return zero, io.EOF
	}
	if err != nil {
		s.closed = true
		return zero, err
	}
	if item.Fatal != nil {
		s.closed = true
		return zero, item.Fatal
	}
	if item.ErrorKind != "" {
		s.closed = true
		return zero, &taskerr.RemoteTaskError{Kind: item.ErrorKind, Description: fmt.Sprint(item.Err)}
	}

	s.receivedTotal += item.ReceivedLen
	if item.ReceivedLen > s.receivedMax {
		s.receivedMax = item.ReceivedLen
	}

	s.done++
	s.reportProgress()

	if !s.private {
		if err := s.monitor.AppendTaskInfo(s.taskName, item.Info); err != nil {
			s.log.Warning().Err(err).Str(`task`, s.taskName).Log(`failed to append task info`)
		}
	}

	return item.Value, nil
}

func (s *Stream[R]) reportProgress() {
	if s.expected <= 0 || s.private {
		return
	}
	percent := int(math.Floor(float64(s.done) / float64(s.expected) * 100))
	if percent > s.lastPercent {
		s.lastPercent = percent
		s.log.Info().Str(`task`, s.taskName).Int(`percent`, percent).Log(`progress`)
	}
}

func (s *Stream[R]) emitSummary() {
	if s.private {
		return
	}
	if s.lastPercent < 100 && s.expected > 0 {
		s.lastPercent = 100
		s.log.Info().Str(`task`, s.taskName).Int(`percent`, 100).Log(`progress`)
	}
	s.log.Info().
		Str(`task`, s.taskName).
		Int64(`received_bytes`, s.receivedTotal).
		Int64(`received_max_per_task`, s.receivedMax).
		Log(`result stream exhausted`)

	if err := s.monitor.SaveInfo(s.taskName, monitor.TransferInfo{
		Sent: s.sent,
		Received: monitor.ReceivedInfo{
			Total:      s.receivedTotal,
			MaxPerTask: s.receivedMax,
		},
	}); err != nil {
		s.log.Warning().Err(err).Str(`task`, s.taskName).Log(`failed to persist transfer info`)
	}
	if err := s.monitor.Flush(); err != nil {
		s.log.Warning().Err(err).Str(`task`, s.taskName).Log(`failed to flush monitor`)
	}
}

// Reduce drains stream, left-folding every value into acc via combine.
// combine must be commutative and associative, since completion order
// (and therefore fold order) is backend-dependent.
func Reduce[R any](ctx context.Context, stream *Stream[R], acc R, combine func(acc, next R) R) (R, error) {
	for {
		value, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}
		acc = combine(acc, value)
	}
}

// SumCounters is the default additive combine for map[string]int64
// accumulators: every key present in either map is summed, missing keys
// treated as zero.
func SumCounters(acc, next map[string]int64) map[string]int64 {
	if acc == nil {
		acc = make(map[string]int64, len(next))
	}
	for k, v := range next {
		acc[k] += v
	}
	return acc
}

// TaskNamePrefix returns the portion of a task name before its first "#",
// or the whole name if it contains none. Multiple result streams produced
// by sharding one logical task (e.g. "scatter#0", "scatter#1") share this
// prefix.
func TaskNamePrefix(taskName string) string {
	if i := strings.IndexByte(taskName, '#'); i >= 0 {
		return taskName[:i]
	}
	return taskName
}

// SumTransferInfo combines TransferInfo values gathered from multiple
// result streams, asserting they all share one task-name prefix (split on
// "#") before summing their sent/received counters.
func SumTransferInfo(taskNames []string, infos []monitor.TransferInfo) (monitor.TransferInfo, error) {
	if len(taskNames) != len(infos) {
		return monitor.TransferInfo{}, fmt.Errorf("resultstream: %d task names but %d infos", len(taskNames), len(infos))
	}
	if len(infos) == 0 {
		return monitor.TransferInfo{}, nil
	}

	prefix := TaskNamePrefix(taskNames[0])
	for _, name := range taskNames[1:] {
		if got := TaskNamePrefix(name); got != prefix {
			return monitor.TransferInfo{}, fmt.Errorf("resultstream: task name prefix mismatch: %q vs %q", prefix, got)
		}
	}

	var out monitor.TransferInfo
	for _, info := range infos {
		out.Sent = SumCounters(out.Sent, info.Sent)
		out.Received.Total += info.Received.Total
		if info.Received.MaxPerTask > out.Received.MaxPerTask {
			out.Received.MaxPerTask = info.Received.MaxPerTask
		}
	}
	return out, nil
}
