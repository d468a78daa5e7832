package algorithms

import (
	"math/rand"
	"time"
)

const (
	maxSweepShift = 63 // Prevent overflow in backoff calculation
)

// exponentialBackoff implements simple exponential idle backoff.
// Delay formula: initialDelay * 2^(missedSweeps-1)
//
// This is the default strategy. A worker that keeps missing on its steal
// sweeps pauses for exponentially longer periods:
// 1 miss:  1x initialDelay
// 2 misses: 2x initialDelay
// 3 misses: 4x initialDelay
// ...until maxDelay is reached
type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newExponentialBackoff(initialDelay, maxDelay time.Duration) *exponentialBackoff {
	return &exponentialBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// NextDelay calculates the exponential backoff delay for the given miss count.
// Uses bit shifting (2^n) for performance instead of math.Pow.
func (eb *exponentialBackoff) NextDelay(missedSweeps int) time.Duration {
	return calcExponentialDelay(missedSweeps, eb.initialDelay, eb.maxDelay)
}

// Reset does nothing for exponential backoff as it has no internal state.
func (eb *exponentialBackoff) Reset() {
	// No state to reset
}

// jitteredBackoff adds randomization to exponential backoff so that idle
// workers do not wake up in lockstep and hammer the same deques together.
// Delay formula: exponentialDelay * (1 ± jitterFactor)
//
// Example with jitterFactor=0.1:
// Base delay of 1ms becomes a random value between 900µs and 1100µs
type jitteredBackoff struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64 // 0.0 to 1.0 (e.g., 0.1 = ±10% jitter)
	rng                    *rand.Rand
}

// newJitteredBackoff creates a new jittered backoff strategy.
// jitterFactor should be between 0.0 and 1.0 (typical values: 0.1 to 0.3).
func newJitteredBackoff(initialDelay, maxDelay time.Duration, jitterFactor float64) *jitteredBackoff {
	return &jitteredBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		jitterFactor: clamp(jitterFactor, 0, 1),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

// NextDelay calculates the jittered exponential backoff delay.
func (jb *jitteredBackoff) NextDelay(missedSweeps int) time.Duration {
	if missedSweeps < 1 {
		return 0
	}

	baseDelay := calcExponentialDelay(missedSweeps, jb.initialDelay, jb.maxDelay)
	jitterMultiplier := 1.0 + (jb.rng.Float64()*2-1)*jb.jitterFactor

	actualDelay := time.Duration(float64(baseDelay) * jitterMultiplier)
	return clamp(actualDelay, 0, jb.maxDelay)
}

// Reset does nothing for jittered backoff (RNG state doesn't need reset).
func (jb *jitteredBackoff) Reset() {
	// No state to reset
}

// decorrelatedBackoff implements AWS-style decorrelated jitter.
// Algorithm: delay = min(maxDelay, random(initialDelay, prevDelay * 3))
//
// Each pause depends on the previous pause, not just the miss count, which
// naturally spreads concurrently idle workers apart over time instead of
// keeping their wake-ups synchronized.
//
// Reference: AWS Architecture Blog - "Exponential Backoff And Jitter"
// (Marc Brooker, 2015)
type decorrelatedBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	prevDelay    time.Duration
	rng          *rand.Rand
}

func newDecorrelatedBackoff(initialDelay, maxDelay time.Duration) *decorrelatedBackoff {
	return &decorrelatedBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		prevDelay:    initialDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

// NextDelay calculates the decorrelated jitter delay.
// Each delay is randomly chosen between initialDelay and 3x the previous
// delay, capped at maxDelay.
func (db *decorrelatedBackoff) NextDelay(missedSweeps int) time.Duration {
	if missedSweeps < 1 {
		return 0
	}

	upperBound := min(time.Duration(float64(db.prevDelay)*3), db.maxDelay)

	delayRange := upperBound - db.initialDelay
	if delayRange <= 0 {
		db.prevDelay = db.initialDelay
		return db.initialDelay
	}

	randomOffset := time.Duration(db.rng.Int63n(int64(delayRange)))
	delay := db.initialDelay + randomOffset

	db.prevDelay = delay
	return delay
}

// Reset resets the previous delay to the initial delay.
func (db *decorrelatedBackoff) Reset() {
	db.prevDelay = db.initialDelay
}

func calcExponentialDelay(missedSweeps int, initialDelay, maxDelay time.Duration) time.Duration {
	if missedSweeps < 1 {
		return 0
	}

	if missedSweeps > maxSweepShift {
		return maxDelay
	}

	backoffFactor := int64(1) << uint(missedSweeps-1)
	delay := time.Duration(backoffFactor) * initialDelay

	if delay > maxDelay || delay < 0 {
		return maxDelay
	}

	return delay
}

func clamp[T int | int64 | float64 | time.Duration](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
