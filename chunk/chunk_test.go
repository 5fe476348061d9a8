package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	blocks := Split([]int{}, Params[int]{ConcurrentTasks: 3})
	assert.Empty(t, blocks)
}

type weighted struct {
	name   string
	weight float64
}

func TestSplitWeighted(t *testing.T) {
	items := []weighted{
		{"A", 10}, {"B", 1}, {"C", 1}, {"D", 1}, {"E", 10},
	}
	blocks := Split(items, Params[weighted]{
		ConcurrentTasks: 3,
		WeightFunc:      func(w weighted) float64 { return w.weight },
	})

	require.Len(t, blocks, 3)
	assertNames(t, blocks[0], "A")
	assertNames(t, blocks[1], "B", "C", "D")
	assertNames(t, blocks[2], "E")
}

func TestSplitKeyBarrier(t *testing.T) {
	// A key barrier overrides the target block count even with ConcurrentTasks == 1.
	type item struct {
		name, key string
	}
	items := []item{{"a", "x"}, {"b", "x"}, {"c", "y"}, {"d", "y"}}
	blocks := Split(items, Params[item]{
		ConcurrentTasks: 1,
		KeyFunc:         func(i item) string { return i.key },
	})

	require.Len(t, blocks, 2)
	require.Len(t, blocks[0].Items, 2)
	require.Len(t, blocks[1].Items, 2)
	assert.Equal(t, "x", blocks[0].Key)
	assert.Equal(t, "y", blocks[1].Key)
}

func TestSplitMaxWeightOverridesConcurrentTasks(t *testing.T) {
	items := []weighted{{"A", 5}, {"B", 5}, {"C", 5}}
	blocks := Split(items, Params[weighted]{
		ConcurrentTasks: 1, // would otherwise produce 1 block
		MaxWeight:       6,
		WeightFunc:      func(w weighted) float64 { return w.weight },
	})
	assert.Greater(t, len(blocks), 1)
	for _, b := range blocks {
		assert.LessOrEqual(t, b.Weight, 6.0)
	}
}

func TestSplitSingleItemHeavierThanMaxWeight(t *testing.T) {
	items := []weighted{{"A", 100}, {"B", 1}}
	blocks := Split(items, Params[weighted]{
		MaxWeight:  10,
		WeightFunc: func(w weighted) float64 { return w.weight },
	})
	require.Len(t, blocks, 2)
	assertNames(t, blocks[0], "A")
	assertNames(t, blocks[1], "B")
}

func TestSplitCompleteness(t *testing.T) {
	// Every element of the input appears in exactly one block.
	items := make([]weighted, 0, 97)
	for i := 0; i < 97; i++ {
		items = append(items, weighted{name: string(rune('a' + i%26)), weight: float64(1 + i%5)})
	}
	blocks := Split(items, Params[weighted]{
		ConcurrentTasks: 7,
		WeightFunc:      func(w weighted) float64 { return w.weight },
	})

	var count int
	for _, b := range blocks {
		count += len(b.Items)
	}
	assert.Equal(t, len(items), count)
}

func assertNames(t *testing.T, b Block[weighted], names ...string) {
	t.Helper()
	require.Len(t, b.Items, len(names))
	for i, n := range names {
		assert.Equal(t, n, b.Items[i].name)
	}
}
