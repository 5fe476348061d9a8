package resultstream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/joeycumines/starmap/memguard"
	"github.com/joeycumines/starmap/monitor"
	"github.com/joeycumines/starmap/taskerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceSource[R any](items []Item[R]) Source[R] {
	i := 0
	return func(ctx context.Context) (Item[R], error) {
		if i >= len(items) {
			return Item[R]{}, io.EOF
		}
		item := items[i]
		i++
		return item, nil
	}
}

func TestStreamYieldsValuesInOrder(t *testing.T) {
	items := []Item[int]{{Value: 1}, {Value: 2}, {Value: 3}}
	s := New[int]("task", 3, monitor.Noop{}, nil, nil, nil, sliceSource(items))

	var got []int
	for {
		v, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestStreamSurfacesRemoteTaskError(t *testing.T) {
	items := []Item[int]{{ErrorKind: "ValueError", Err: errors.New("boom")}}
	s := New[int]("task", 1, monitor.Noop{}, nil, nil, nil, sliceSource(items))

	_, err := s.Next(context.Background())
	var rte *taskerr.RemoteTaskError
	require.ErrorAs(t, err, &rte)
	assert.Equal(t, "ValueError", rte.Kind)
}

func TestStreamSurfacesFatalImmediately(t *testing.T) {
	items := []Item[int]{{Fatal: &taskerr.WorkerLost{Reason: errors.New("conn reset")}}}
	s := New[int]("task", 1, monitor.Noop{}, nil, nil, nil, sliceSource(items))

	_, err := s.Next(context.Background())
	var lost *taskerr.WorkerLost
	require.ErrorAs(t, err, &lost)
}

func TestStreamMemoryHardLimitAbortsFirstPull(t *testing.T) {
	guard := memguard.NewWithSampler(memguard.Thresholds{SoftPercent: 80, HardPercent: 95}, func() (float64, error) {
		return 99, nil
	})
	items := []Item[int]{{Value: 1}, {Value: 2}}
	s := New[int]("task", 2, monitor.Noop{}, guard, nil, nil, sliceSource(items))

	_, err := s.Next(context.Background())
	var exhausted *taskerr.MemoryExhausted
	require.ErrorAs(t, err, &exhausted)
}

func TestReduceSums(t *testing.T) {
	items := []Item[int]{{Value: 1}, {Value: 2}, {Value: 3}}
	s := New[int]("task", 3, monitor.Noop{}, nil, nil, nil, sliceSource(items))

	total, err := Reduce(context.Background(), s, 0, func(acc, next int) int { return acc + next })
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestProgressMonotonic(t *testing.T) {
	items := make([]Item[int], 10)
	for i := range items {
		items[i] = Item[int]{Value: i}
	}
	s := New[int]("task", 10, monitor.Noop{}, nil, nil, nil, sliceSource(items))

	lastPercent := -1
	for {
		_, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.lastPercent, lastPercent)
		lastPercent = s.lastPercent
	}
}

func TestTaskNamePrefix(t *testing.T) {
	assert.Equal(t, "scatter", TaskNamePrefix("scatter#0"))
	assert.Equal(t, "scatter", TaskNamePrefix("scatter"))
}

func TestSumTransferInfo(t *testing.T) {
	infos := []monitor.TransferInfo{
		{Sent: map[string]int64{"arg0": 10}, Received: monitor.ReceivedInfo{Total: 100, MaxPerTask: 60}},
		{Sent: map[string]int64{"arg0": 5}, Received: monitor.ReceivedInfo{Total: 50, MaxPerTask: 30}},
	}
	out, err := SumTransferInfo([]string{"scatter#0", "scatter#1"}, infos)
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.Sent["arg0"])
	assert.Equal(t, int64(150), out.Received.Total)
	assert.Equal(t, int64(60), out.Received.MaxPerTask)
}

func TestSumTransferInfoRejectsMismatchedPrefix(t *testing.T) {
	_, err := SumTransferInfo([]string{"scatter#0", "gather#1"}, []monitor.TransferInfo{{}, {}})
	assert.Error(t, err)
}
