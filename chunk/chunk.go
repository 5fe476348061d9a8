// Package chunk implements the weight-aware splitter: it turns a long,
// heterogeneous input sequence into a target number of roughly equal-weight
// blocks, so that one oversized straggler task does not dominate wall time.
package chunk

// Params configures a Split call. The zero value is valid: it yields one
// block per distinct key (weight 1 per item, one shared key).
type Params[T any] struct {
	// ConcurrentTasks is the target block count in target-count mode.
	// Defaults to 1 if <= 0 and MaxWeight is also unset.
	ConcurrentTasks int

	// MaxWeight, if > 0, switches Split into max-weight mode and overrides
	// ConcurrentTasks.
	MaxWeight float64

	// WeightFunc returns the weight of an item. Defaults to a constant 1.
	WeightFunc func(item T) float64

	// KeyFunc returns the partition key of an item; adjacent items with
	// different keys force a block boundary even under the weight target.
	// Defaults to a constant "unspecified".
	KeyFunc func(item T) string
}

// Block is one contiguous sub-sequence produced by Split, along with its
// total weight and the partition key shared by all of its items.
type Block[T any] struct {
	Items  []T
	Weight float64
	Key    string
}

func (p Params[T]) weightFunc() func(T) float64 {
	if p.WeightFunc != nil {
		return p.WeightFunc
	}
	return func(T) float64 { return 1 }
}

func (p Params[T]) keyFunc() func(T) string {
	if p.KeyFunc != nil {
		return p.KeyFunc
	}
	return func(T) string { return "unspecified" }
}

// Split partitions items according to params. The following hold for every
// call:
//
//   - every element appears in exactly one returned Block.
//   - no Block mixes items with different KeyFunc outputs.
//   - in target-count mode, weight(block) <= max(total/n, max item weight).
//
// Empty input yields zero blocks.
func Split[T any](items []T, params Params[T]) []Block[T] {
	if len(items) == 0 {
		return nil
	}

	weightOf := params.weightFunc()
	keyOf := params.keyFunc()

	if params.MaxWeight > 0 {
		return splitByMaxWeight(items, params.MaxWeight, weightOf, keyOf)
	}

	n := params.ConcurrentTasks
	if n <= 0 {
		n = 1
	}
	return splitByTargetCount(items, n, weightOf, keyOf)
}

func splitByTargetCount[T any](items []T, n int, weightOf func(T) float64, keyOf func(T) string) []Block[T] {
	var total float64
	for _, it := range items {
		total += weightOf(it)
	}
	target := total / float64(n)
	if target <= 0 {
		target = 1
	}
	return walk(items, weightOf, keyOf, func(running float64) bool {
		return running > target
	})
}

func splitByMaxWeight[T any](items []T, maxWeight float64, weightOf func(T) float64, keyOf func(T) string) []Block[T] {
	return walk(items, weightOf, keyOf, func(running float64) bool {
		return running > maxWeight
	})
}

// walk performs the shared left-to-right accumulation: it closes the
// current block whenever adding the next item would cross the boundary
// (reported by exceedsBoundary on the running weight including that item),
// or whenever the next item's key differs from the current block's key.
// A single item heavier than the boundary still gets its own block (it is
// placed alone rather than endlessly re-triggering the boundary check).
func walk[T any](items []T, weightOf func(T) float64, keyOf func(T) string, exceedsBoundary func(running float64) bool) []Block[T] {
	var blocks []Block[T]
	var cur []T
	var curWeight float64
	var curKey string
	started := false

	flush := func() {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, Block[T]{Items: cur, Weight: curWeight, Key: curKey})
		cur = nil
		curWeight = 0
	}

	for _, it := range items {
		w := weightOf(it)
		k := keyOf(it)

		if started && k != curKey {
			flush()
		}

		if len(cur) > 0 && exceedsBoundary(curWeight+w) {
			flush()
		}

		cur = append(cur, it)
		curWeight += w
		curKey = k
		started = true
	}
	flush()

	return blocks
}

// TotalWeight sums WeightFunc over items, using params' configured or
// default weight function. Exposed for callers that want to report an
// estimate of total submission cost ahead of calling Split.
func TotalWeight[T any](items []T, params Params[T]) float64 {
	weightOf := params.weightFunc()
	var total float64
	for _, it := range items {
		total += weightOf(it)
	}
	return total
}
