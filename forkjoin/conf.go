package forkjoin

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/utkarsh5026/forkjoin/internal/algorithms"
	"github.com/utkarsh5026/forkjoin/internal/scheduler"
)

// Re-exported scheduling types so callers never import internal packages.
type (
	// Task is one unit of work; see the package documentation.
	Task = scheduler.Task
	// Worker is the execution context passed to every task.
	Worker = scheduler.Worker
	// WaitPolicy selects how joins block; see WithWaitPolicy.
	WaitPolicy = scheduler.WaitPolicy
	// BackoffType selects the idle backoff algorithm.
	BackoffType = algorithms.BackoffType
	// FatalError reports a violated design-time assumption.
	FatalError = scheduler.FatalError
)

const (
	// WaitCooperative re-enters the scheduling loop while waiting.
	WaitCooperative = scheduler.WaitCooperative
	// WaitBusy spins without helping.
	WaitBusy = scheduler.WaitBusy

	// BackoffExponential doubles the idle pause per empty sweep.
	BackoffExponential = algorithms.BackoffExponential
	// BackoffJittered adds random jitter to the exponential pause.
	BackoffJittered = algorithms.BackoffJittered
	// BackoffDecorrelated uses AWS-style decorrelated jitter.
	BackoffDecorrelated = algorithms.BackoffDecorrelated
)

// Option is a functional option for configuring the scheduler.
type Option func(*config)

type config struct {
	workers       int
	dequeCapacity int
	waitPolicy    WaitPolicy
	backoffType   BackoffType
	idleDelay     time.Duration
	maxIdleDelay  time.Duration
	jitterFactor  float64
	throttle      *rate.Limiter
}

// WithWorkers sets the number of workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkers(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithDequeCapacity bounds each worker deque. The bound is the maximum
// number of concurrently live spawned tasks per worker; exceeding it is
// fatal. Recursive workloads need roughly their recursion depth.
// If not specified, defaults to 200.
func WithDequeCapacity(capacity int) Option {
	return func(cfg *config) {
		if capacity > 0 {
			cfg.dequeCapacity = capacity
		}
	}
}

// WithWaitPolicy selects how a spawner waits for a stolen task: joining
// cooperatively (execute other tasks meanwhile, the default) or busily
// (spin). Cooperative joining deadlocks if a helped task reacquires a
// lock the waiter already holds; busy joining is always safe with
// respect to external locks but wastes the core.
func WithWaitPolicy(policy WaitPolicy) Option {
	return func(cfg *config) {
		cfg.waitPolicy = policy
	}
}

// WithIdleBackoff configures how long an idle worker pauses between
// failed steal sweeps. initial is the first pause, max caps the growth.
// If not specified, exponential backoff from 10µs to 1ms is used.
func WithIdleBackoff(backoffType BackoffType, initial, max time.Duration) Option {
	return func(cfg *config) {
		cfg.backoffType = backoffType
		if initial > 0 {
			cfg.idleDelay = initial
		}
		if max > 0 {
			cfg.maxIdleDelay = max
		}
	}
}

// WithJitterFactor sets the jitter applied by BackoffJittered.
// factor should be between 0.0 and 1.0 (typical values: 0.1 to 0.3).
func WithJitterFactor(factor float64) Option {
	return func(cfg *config) {
		if factor > 0 {
			cfg.jitterFactor = factor
		}
	}
}

// WithIdleThrottle paces idle steal sweeps through a token bucket. The
// limiter is only consulted after a fully failed sweep, never while work
// is available, so it bounds contention from idle workers without
// touching the hot path.
//
// Example:
//
//	WithIdleThrottle(rate.NewLimiter(10000, 100)) // 10k sweeps/sec, burst 100
func WithIdleThrottle(limiter *rate.Limiter) Option {
	return func(cfg *config) {
		cfg.throttle = limiter
	}
}
