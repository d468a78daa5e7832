// Package forkjoin provides a fork-join task-parallel runtime built on
// per-worker lock-free deques and work stealing.
//
// A fixed pool of workers cooperatively executes a dynamically expanding
// tree of tasks. Each worker owns a bounded deque: it pushes and pops its
// own spawned tasks at the bottom, and idle workers steal from the top of
// randomly chosen deques. Recursive divide-and-conquer programs scale
// across cores without a central queue or locks on the hot path.
//
// # Basic Usage
//
//	ctx := context.Background()
//	fj := forkjoin.New(forkjoin.WithWorkers(8))
//	err := fj.Run(ctx, func(w *forkjoin.Worker) {
//	    fj.Pardo(w,
//	        func(w *forkjoin.Worker) { computeLeft(w) },
//	        func(w *forkjoin.Worker) { computeRight(w) },
//	    )
//	}, 0)
//
// Pardo executes both tasks with fork-join semantics: the right task is
// spawned onto the caller's own deque, the left runs inline, and Pardo
// returns only after both have completed. When no thief was fast enough
// to steal the right task, it is popped back and executed inline with no
// synchronization at all, which is the common case.
//
// # Worker Contexts
//
// Every task receives the *Worker executing it. The worker value carries
// the stable worker index and must be passed to nested Pardo, Spawn,
// TryPop, and Wait calls; it is only valid on the goroutine that invoked
// the task.
//
// # Wait Policies
//
// When a spawned task was stolen, the spawner must wait for it. Two
// policies are available via WithWaitPolicy:
//
//   - WaitCooperative (default): the waiter re-enters the scheduling
//     loop and executes other tasks while waiting. Maximum throughput,
//     but helping a task that reacquires a lock the waiter holds will
//     deadlock, so do not hold external locks across a join.
//   - WaitBusy: the waiter spins without helping. Safe with respect to
//     external locks, at the cost of an idle core.
//
// # Parallel Helpers
//
// Do, Range, and RangeReduce compose Pardo into the usual
// divide-and-conquer shapes:
//
//	fj.Run(ctx, func(w *forkjoin.Worker) {
//	    fj.Range(w, 0, len(data), 0, func(w *forkjoin.Worker, lo, hi int) {
//	        for i := lo; i < hi; i++ {
//	            data[i] = transform(data[i])
//	        }
//	    })
//	}, 0)
//
// # Error Handling
//
// "No task available" results are ordinary nil returns, never errors.
// Two conditions are fatal and panic with *FatalError after writing a
// diagnostic to stderr: overflowing a deque's fixed capacity (the
// workload exceeded the configured bound on concurrently live spawned
// tasks) and tag-counter exhaustion (practically unreachable). Tasks have
// no error return; a task that panics takes down its worker, so tasks
// are expected to handle their own failures. Cancelling the Run context
// abandons the session: workers stop requesting tasks and Run returns
// the context's error.
//
// # Configuration Options
//
//   - WithWorkers(n): number of workers (default: GOMAXPROCS)
//   - WithWaitPolicy(p): cooperative or busy joining
//   - WithDequeCapacity(n): per-deque bound on live spawned tasks
//   - WithIdleBackoff(type, initial, max): pause growth for idle workers
//   - WithJitterFactor(f): jitter applied by the jittered backoff
//   - WithIdleThrottle(limiter): token-bucket pacing of idle steal sweeps
package forkjoin
