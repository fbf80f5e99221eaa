package fvq

import "github.com/ajroetker/go-highway/hwy/contrib/workerpool"

const (
	// minParallelLines is the smallest line count worth fanning out.
	minParallelLines = 32
	// parallelBatch is the number of lines per submitted task.
	parallelBatch = 8
)

// forLines runs fn over [0, n), using pool when it pays off and a plain
// call otherwise. fn must be safe to run concurrently on disjoint ranges.
func forLines(pool *workerpool.Pool, n int, fn func(start, end int)) {
	if pool == nil || n < minParallelLines {
		fn(0, n)
		return
	}
	pool.ParallelForAtomicBatched(n, parallelBatch, fn)
}
