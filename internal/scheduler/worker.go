package scheduler

import (
	"context"
	"time"

	"github.com/utkarsh5026/forkjoin/internal/algorithms"
)

// Worker is the execution context threaded through every scheduling call.
// Each worker goroutine is spawned with a stable index in [0, W); the
// index names the worker's own deque and seeds its steal-target hashing.
// There is no hidden goroutine-local state: whoever needs the identity
// receives the *Worker explicitly.
type Worker struct {
	id    int
	sched *Scheduler
	ctx   context.Context

	// attempts counts steal probes across the worker's lifetime and
	// feeds the victim hash, so repeated sweeps probe the deques in
	// fresh pseudo-random orders.
	attempts uint64

	backoff algorithms.BackoffStrategy
}

// ID returns the worker's stable index in [0, W).
func (w *Worker) ID() int {
	return w.id
}

// idle pauses the worker after a fully failed steal sweep. With a
// throttle configured, sweeps are paced by its token bucket; otherwise
// the worker's backoff strategy decides the pause. Either way this is the
// only voluntary yield point in the loop, and it sits strictly off the
// hot path.
func (w *Worker) idle(missedSweeps int) {
	if t := w.sched.throttle; t != nil {
		if err := t.Wait(w.ctx); err == nil {
			return
		}
		// Context cancelled while throttled; the caller's next done
		// check observes it.
	}
	time.Sleep(w.backoff.NextDelay(missedSweeps))
}
