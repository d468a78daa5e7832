package forkjoin

import "fmt"

// Do executes the given tasks with fork-join semantics, returning only
// when all of them have completed. The tasks are split recursively into
// Pardo pairs, so independent halves can be stolen by idle workers.
func (s *Scheduler) Do(w *Worker, tasks ...Task) {
	switch len(tasks) {
	case 0:
		return
	case 1:
		tasks[0](w)
		return
	case 2:
		s.Pardo(w, tasks[0], tasks[1])
		return
	}

	half := len(tasks) / 2
	s.Pardo(w,
		func(w *Worker) { s.Do(w, tasks[:half]...) },
		func(w *Worker) { s.Do(w, tasks[half:]...) },
	)
}

// Range invokes f over disjoint sub-intervals covering the half-open
// interval [low, high), splitting recursively until sub-intervals are at
// most grain wide. A grain of 0 selects a default that produces a few
// batches per worker, enough slack for stealing to balance uneven work.
//
// Range panics if high < low.
func (s *Scheduler) Range(w *Worker, low, high, grain int, f func(w *Worker, low, high int)) {
	if high < low {
		panic(fmt.Sprintf("forkjoin: invalid range: %v:%v", low, high))
	}
	if high == low {
		return
	}
	if grain <= 0 {
		grain = defaultGrain(s.Workers(), high-low)
	}

	var recur func(w *Worker, low, high int)
	recur = func(w *Worker, low, high int) {
		if high-low <= grain {
			f(w, low, high)
			return
		}
		mid := low + (high-low)/2
		s.Pardo(w,
			func(w *Worker) { recur(w, low, mid) },
			func(w *Worker) { recur(w, mid, high) },
		)
	}
	recur(w, low, high)
}

// RangeReduce reduces the half-open interval [low, high): reduce is
// invoked over sub-intervals at most grain wide, and the partial results
// are combined pairwise with pair, in interval order. A grain of 0
// selects the same default as Range. An empty range yields the zero
// value of R.
//
// RangeReduce panics if high < low.
func RangeReduce[R any](s *Scheduler, w *Worker, low, high, grain int,
	reduce func(w *Worker, low, high int) R,
	pair func(x, y R) R,
) R {
	if high < low {
		panic(fmt.Sprintf("forkjoin: invalid range: %v:%v", low, high))
	}
	var zero R
	if high == low {
		return zero
	}
	if grain <= 0 {
		grain = defaultGrain(s.Workers(), high-low)
	}

	var recur func(w *Worker, low, high int) R
	recur = func(w *Worker, low, high int) R {
		if high-low <= grain {
			return reduce(w, low, high)
		}
		mid := low + (high-low)/2
		var left, right R
		s.Pardo(w,
			func(w *Worker) { left = recur(w, low, mid) },
			func(w *Worker) { right = recur(w, mid, high) },
		)
		return pair(left, right)
	}
	return recur(w, low, high)
}

// defaultGrain aims for a handful of batches per worker so the steal
// loop has enough independent pieces to balance load, without descending
// into per-element tasks.
func defaultGrain(workers, size int) int {
	batches := 4 * workers
	grain := (size + batches - 1) / batches
	if grain < 1 {
		grain = 1
	}
	return grain
}
