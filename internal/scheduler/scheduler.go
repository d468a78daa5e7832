package scheduler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/forkjoin/internal/algorithms"
)

const (
	// stealSweepFactor sizes one steal sweep at 4 probes per deque. With
	// uniform random targets that is comfortably past the coupon-collector
	// bound, so a sweep that finds nothing very likely probed every deque
	// at least once and the worker can afford to pause.
	stealSweepFactor = 4

	// ctxCheckInterval bounds how many scheduling decisions pass between
	// context checks. Context errors take a lock, so the hot path only
	// consults the finished flag.
	ctxCheckInterval = 64

	defaultIdleDelay    = 10 * time.Microsecond
	defaultMaxIdleDelay = time.Millisecond
)

// WaitPolicy selects how Wait blocks until its predicate turns true.
type WaitPolicy int

const (
	// WaitCooperative re-enters the scheduling loop while waiting,
	// executing local and stolen jobs. This maximizes throughput, but a
	// helped job that tries to reacquire a lock the waiter already holds
	// will deadlock; do not hold external locks across a cooperative
	// wait.
	WaitCooperative WaitPolicy = iota

	// WaitBusy spins (yielding the processor) without helping. Always
	// safe with respect to external locks, at the cost of an idle core.
	WaitBusy
)

// Config carries the construction-time knobs for a Scheduler. Zero values
// select defaults.
type Config struct {
	// Workers is the number of worker goroutines (0 = GOMAXPROCS).
	Workers int

	// DequeCapacity bounds each deque (0 = DefaultDequeCapacity).
	DequeCapacity int

	// WaitPolicy selects cooperative or busy waiting.
	WaitPolicy WaitPolicy

	// Backoff selects the idle backoff algorithm.
	Backoff algorithms.BackoffType

	// IdleDelay and MaxIdleDelay bound the idle pause between failed
	// steal sweeps.
	IdleDelay    time.Duration
	MaxIdleDelay time.Duration

	// JitterFactor applies to the jittered backoff strategy.
	JitterFactor float64

	// Throttle optionally paces idle steal sweeps. Never consulted while
	// work is available.
	Throttle *rate.Limiter
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.DequeCapacity <= 0 {
		c.DequeCapacity = DefaultDequeCapacity
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = defaultIdleDelay
	}
	if c.MaxIdleDelay <= 0 {
		c.MaxIdleDelay = defaultMaxIdleDelay
	}
	return c
}

// Scheduler runs a fixed pool of workers over 2W lock-free deques. Worker
// i owns deque i; the extra W deques carry no owner and exist so steal
// targets stay plentiful when worker counts are small. One Scheduler
// value is reusable: Run clears the finished flag before returning.
//
// There are no mutexes anywhere on the scheduling path. Coordination is
// the finished flag, the deques' atomics, and nothing else.
type Scheduler struct {
	deques     []*Deque
	workers    int
	waitPolicy WaitPolicy
	throttle   *rate.Limiter

	backoffType  algorithms.BackoffType
	idleDelay    time.Duration
	maxIdleDelay time.Duration
	jitterFactor float64

	finished paddedBool
}

// paddedBool keeps the heavily read finished flag on its own cache line.
type paddedBool struct {
	_ [cacheLinePadding]byte
	b atomic.Bool
	_ [cacheLinePadding - 1]byte
}

// New constructs a scheduler with cfg. The deque array is sized for the
// configured worker count; Run may use fewer workers but never more.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()

	s := &Scheduler{
		deques:       make([]*Deque, 2*cfg.Workers),
		workers:      cfg.Workers,
		waitPolicy:   cfg.WaitPolicy,
		throttle:     cfg.Throttle,
		backoffType:  cfg.Backoff,
		idleDelay:    cfg.IdleDelay,
		maxIdleDelay: cfg.MaxIdleDelay,
		jitterFactor: cfg.JitterFactor,
	}
	for i := range s.deques {
		s.deques[i] = NewDeque(cfg.DequeCapacity)
	}
	return s
}

// Workers returns the configured worker count.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run seeds deque 0 with root, starts the workers, and blocks until every
// worker has observed Finish (or ctx is cancelled) and exited. workers
// limits this session's parallelism; 0 or anything past the configured
// count selects the configured count.
//
// On return the finished flag is cleared, so the scheduler is ready for
// the next session.
func (s *Scheduler) Run(ctx context.Context, root *Job, workers int) error {
	if workers <= 0 || workers > s.workers {
		workers = s.workers
	}

	s.deques[0].PushBottom(root)
	debugLog("session start: workers=%d, deques=%d", workers, len(s.deques))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		w := s.newWorker(ctx, i)
		g.Go(func() error {
			return s.runWorker(w)
		})
	}
	err := g.Wait()
	debugLog("session end: err=%v", err)

	s.finished.b.Store(false)
	return err
}

func (s *Scheduler) newWorker(ctx context.Context, id int) *Worker {
	return &Worker{
		id:    id,
		sched: s,
		ctx:   ctx,
		backoff: algorithms.NewBackoffStrategy(
			s.backoffType, s.idleDelay, s.maxIdleDelay, s.jitterFactor),
	}
}

// runWorker is one worker's top-level loop: fetch a job, execute it,
// repeat until the session terminates. Context cancellation is folded
// into the termination predicate but checked only periodically, keeping
// the per-decision cost to one atomic load.
func (s *Scheduler) runWorker(w *Worker) error {
	var decisions int
	done := func() bool {
		if s.finished.b.Load() {
			return true
		}
		decisions++
		return decisions%ctxCheckInterval == 0 && w.ctx.Err() != nil
	}

	for {
		j := s.getJob(w, done)
		if j == nil {
			break
		}
		j.Invoke(w)
	}

	debugLog("worker exiting: id=%d, finished=%v", w.id, s.finished.b.Load())
	if s.finished.b.Load() {
		return nil
	}
	return w.ctx.Err()
}

// Spawn pushes job onto the calling worker's own deque. Must only be
// called from within that worker's execution context.
func (s *Scheduler) Spawn(w *Worker, job *Job) {
	s.deques[w.id].PushBottom(job)
}

// TryPop pops the calling worker's own deque, returning the most recently
// spawned job that has not been stolen, or nil.
func (s *Scheduler) TryPop(w *Worker) *Job {
	return s.deques[w.id].PopBottom()
}

// Finish signals termination for the current Run session. Every worker
// observes the flag at its next scheduling decision and exits once no job
// is in hand; a job already executing runs to completion.
func (s *Scheduler) Finish() {
	debugLog("finish signalled")
	s.finished.b.Store(true)
}

// Wait blocks the calling worker context until pred returns true,
// according to the configured wait policy. Under the cooperative policy
// the worker keeps scheduling, treating pred as its termination
// condition; under the busy policy it spins and yields.
func (s *Scheduler) Wait(w *Worker, pred func() bool) {
	if s.waitPolicy == WaitBusy {
		for !pred() {
			runtime.Gosched()
		}
		return
	}

	for {
		j := s.getJob(w, pred)
		if j == nil {
			return
		}
		j.Invoke(w)
	}
}

// getJob is the scheduling loop's core decision. Order: termination
// check, local pop, then steal sweeps of hashed-random PopTop attempts
// with an idle pause between sweeps. done is consulted before every
// probe so termination is observed within one bounded sweep.
func (s *Scheduler) getJob(w *Worker, done func() bool) *Job {
	if done() {
		return nil
	}
	if j := s.TryPop(w); j != nil {
		w.backoff.Reset()
		return j
	}

	sweep := stealSweepFactor * len(s.deques)
	misses := 0
	for {
		for i := 0; i < sweep; i++ {
			if done() {
				return nil
			}
			if j := s.trySteal(w); j != nil {
				w.backoff.Reset()
				return j
			}
		}
		if w.ctx.Err() != nil {
			return nil
		}
		misses++
		w.idle(misses)
	}
}

// trySteal probes one pseudo-randomly chosen deque's top. A nil result
// only means this probe lost or found nothing; the caller retries
// elsewhere.
func (s *Scheduler) trySteal(w *Worker) *Job {
	target := algorithms.StealTarget(w.id, w.attempts, len(s.deques))
	w.attempts++
	return s.deques[target].PopTop()
}
