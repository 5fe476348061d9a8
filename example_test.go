package starmap_test

import (
	"context"
	"fmt"
	"sort"

	"github.com/joeycumines/starmap"
	"github.com/joeycumines/starmap/chunk"
)

// countLetters tallies the frequency of each byte in block, ignoring extra.
func countLetters(_ context.Context, _ *starmap.TaskContext, block []byte, _ struct{}) (map[byte]int, error) {
	counts := make(map[byte]int, len(block))
	for _, b := range block {
		counts[b]++
	}
	return counts, nil
}

func mergeCounts(acc, next map[byte]int) map[byte]int {
	if acc == nil {
		acc = make(map[byte]int, len(next))
	}
	for b, n := range next {
		acc[b] += n
	}
	return acc
}

func printSorted(counts map[byte]int) {
	letters := make([]byte, 0, len(counts))
	for b := range counts {
		letters = append(letters, b)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	for _, b := range letters {
		fmt.Printf("%c:%d ", b, counts[b])
	}
	fmt.Println()
}

// Example demonstrates splitting "helloworld" into two weighted blocks,
// dispatching one count task per block on the local worker pool, and
// folding the per-block counts into one frequency table.
func Example() {
	engine := starmap.NewEngine(starmap.Config{PoolSize: 2})
	if err := engine.Init(0); err != nil {
		panic(err)
	}
	defer engine.Shutdown()

	task := starmap.Task[byte, struct{}, map[byte]int]{
		Name: "count_chars",
		Func: countLetters,
	}

	sm := starmap.Apply(
		engine,
		task,
		[]byte("helloworld"),
		struct{}{},
		chunk.Params[byte]{ConcurrentTasks: 2},
		nil,
		starmap.BackendLocalPool,
	)

	result, err := sm.Reduce(context.Background(), nil, mergeCounts)
	if err != nil {
		panic(err)
	}

	printSorted(result)
	// Output: d:1 e:1 h:1 l:3 o:2 r:1 w:1
}

// Example_apply shows the same counting task dispatched with no Engine at
// all: Apply only consults an Engine for its default ConcurrentTasks, so a
// nil Engine falls back to chunk.Split's own single-block default and the
// submission runs sequentially, on the calling goroutine.
func Example_apply() {
	task := starmap.Task[byte, struct{}, map[byte]int]{
		Name: "count_chars_single",
		Func: countLetters,
	}

	sm := starmap.Apply[byte, struct{}, map[byte]int](
		nil,
		task,
		[]byte("helloworld"),
		struct{}{},
		chunk.Params[byte]{},
		nil,
		"",
	)

	result, err := sm.Reduce(context.Background(), nil, mergeCounts)
	if err != nil {
		panic(err)
	}

	printSorted(result)
	// Output: d:1 e:1 h:1 l:3 o:2 r:1 w:1
}
