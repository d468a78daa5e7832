package forkjoin

import (
	"context"
	"sync/atomic"

	"github.com/utkarsh5026/forkjoin/internal/scheduler"
)

// Scheduler is the public fork-join runtime. One value is reusable across
// any number of consecutive Run sessions, but sessions must not overlap:
// concurrent Run calls on the same value share the termination flag and
// the deques and are not safe.
type Scheduler struct {
	sched *scheduler.Scheduler
}

// New creates a fork-join scheduler with the given options.
// Default configuration: workers = GOMAXPROCS, deque capacity 200,
// cooperative waiting, exponential idle backoff.
func New(opts ...Option) *Scheduler {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Scheduler{
		sched: scheduler.New(scheduler.Config{
			Workers:       cfg.workers,
			DequeCapacity: cfg.dequeCapacity,
			WaitPolicy:    cfg.waitPolicy,
			Backoff:       cfg.backoffType,
			IdleDelay:     cfg.idleDelay,
			MaxIdleDelay:  cfg.maxIdleDelay,
			JitterFactor:  cfg.jitterFactor,
			Throttle:      cfg.throttle,
		}),
	}
}

// Workers returns the configured worker count.
func (s *Scheduler) Workers() int {
	return s.sched.Workers()
}

// Run executes root and everything it transitively spawns, blocking until
// all of it has completed. workers limits this session's parallelism; 0
// selects the configured count. The root task is wrapped so that its
// completion signals termination to every worker.
//
// Run returns a non-nil error only when ctx is cancelled before the
// session completes, in which case the session is abandoned: workers stop
// requesting tasks and pending joins are not honored.
func (s *Scheduler) Run(ctx context.Context, root Task, workers int) error {
	job := scheduler.NewJob(func(w *Worker) {
		root(w)
		s.sched.Finish()
	})
	return s.sched.Run(ctx, job, workers)
}

// Pardo executes left and right with fork-join semantics: it returns only
// after both have completed, regardless of which worker ran right.
//
// The right task is spawned onto the calling worker's own deque and left
// runs inline. If no thief stole right in the meantime, it is popped back
// and executed inline too; this fast path involves no waiting and no
// shared-memory synchronization beyond the deque itself. Only when right
// was actually stolen does the caller wait, under the configured wait
// policy, for the thief to finish it.
//
// Must be called from within a task body, with that task's worker.
func (s *Scheduler) Pardo(w *Worker, left, right Task) {
	// Two independent flags: stolen is set by the thief before right
	// begins, done after it completes. The spawner may observe stolen
	// while done is still false.
	var stolen, done atomic.Bool
	rightJob := scheduler.NewJob(func(w *Worker) {
		stolen.Store(true)
		right(w)
		done.Store(true)
	})

	s.sched.Spawn(w, rightJob)
	left(w)

	if !stolen.Load() {
		j := s.sched.TryPop(w)
		if j == rightJob {
			right(w)
			return
		}
		if j != nil {
			// Unrelated work from an enclosing spawn; it must not be
			// discarded, so put it back before waiting.
			s.sched.Spawn(w, j)
		}
	}

	s.sched.Wait(w, done.Load)
}

// Spawn enqueues task on the calling worker's own deque and returns
// immediately. The task runs when the worker pops it or a thief steals
// it. Must be called from within a task body, with that task's worker.
//
// Most callers want Pardo, which also joins. Spawn is the raw primitive
// for protocols that track completion themselves.
func (s *Scheduler) Spawn(w *Worker, task Task) {
	s.sched.Spawn(w, scheduler.NewJob(task))
}

// TryPop returns the calling worker's most recently spawned task that has
// not been stolen, or nil if the worker's deque is empty to it.
func (s *Scheduler) TryPop(w *Worker) Task {
	j := s.sched.TryPop(w)
	if j == nil {
		return nil
	}
	return j.Task()
}

// Wait blocks the calling worker context until pred returns true, under
// the configured wait policy. pred must eventually be satisfied by work
// reachable from the deques (cooperative) or by another worker (busy).
func (s *Scheduler) Wait(w *Worker, pred func() bool) {
	s.sched.Wait(w, pred)
}

// Finish signals termination for the current Run session. Run's root
// wrapper calls this automatically; calling it from a task terminates
// the session early, abandoning unexecuted spawned work.
func (s *Scheduler) Finish() {
	s.sched.Finish()
}
