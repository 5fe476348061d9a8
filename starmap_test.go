package starmap

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/starmap/chunk"
	"github.com/joeycumines/starmap/taskerr"
)

func sumTask(_ context.Context, _ *TaskContext, block []int, extra int) (int, error) {
	total := extra
	for _, v := range block {
		total += v
	}
	return total, nil
}

func addInts(acc, next int) int { return acc + next }

func TestStarmapSequentialSingleBlock(t *testing.T) {
	task := Task[int, int, int]{Name: "sum", Func: sumTask}
	sm := Apply(nil, task, []int{1, 2, 3}, 0, chunk.Params[int]{}, nil, "")

	got, err := sm.Reduce(context.Background(), 0, addInts)
	require.NoError(t, err)
	assert.Equal(t, 6, got)
}

func TestStarmapLocalPoolMultiBlock(t *testing.T) {
	engine := NewEngine(Config{PoolSize: 2})
	require.NoError(t, engine.Init(0))
	defer engine.Shutdown()

	task := Task[int, int, int]{Name: "sum", Func: sumTask}
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	sm := Apply(engine, task, items, 0, chunk.Params[int]{ConcurrentTasks: 4}, nil, BackendLocalPool)

	got, err := sm.Reduce(context.Background(), 0, addInts)
	require.NoError(t, err)
	assert.Equal(t, 36, got)
}

func TestStarmapEmptyInputIsNoop(t *testing.T) {
	task := Task[int, int, int]{Name: "sum", Func: sumTask}
	sm := Apply[int, int, int](nil, task, nil, 0, chunk.Params[int]{}, nil, "")

	stream, err := sm.SubmitAll(context.Background())
	require.NoError(t, err)

	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStarmapLocalPoolWithoutEngineFails(t *testing.T) {
	task := Task[int, int, int]{Name: "sum", Func: sumTask}
	// Two blocks forces a real backend lookup rather than the <=1-block
	// sequential fallback.
	sm := Apply(nil, task, []int{1, 2, 3, 4}, 0, chunk.Params[int]{ConcurrentTasks: 2}, nil, BackendLocalPool)

	_, err := sm.SubmitAll(context.Background())
	require.Error(t, err)
	var unavailable *taskerr.BackendUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestStarmapTaskErrorSurfacesOnce(t *testing.T) {
	failAt := 3
	task := Task[int, int, int]{
		Name: "maybe_fail",
		Func: func(_ context.Context, tc *TaskContext, block []int, _ int) (int, error) {
			if int(tc.TaskNo) == failAt {
				return 0, assert.AnError
			}
			return block[0], nil
		},
	}
	sm := Apply(nil, task, []int{1, 2, 3, 4, 5}, 0, chunk.Params[int]{ConcurrentTasks: 5}, nil, BackendNone)

	stream, err := sm.SubmitAll(context.Background())
	require.NoError(t, err)

	var successes int
	for {
		_, err := stream.Next(context.Background())
		if err == nil {
			successes++
			continue
		}
		var remoteErr *taskerr.RemoteTaskError
		require.ErrorAs(t, err, &remoteErr)
		break
	}
	assert.Equal(t, failAt-1, successes)

	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
