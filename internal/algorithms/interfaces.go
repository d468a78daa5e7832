package algorithms

import "time"

// BackoffStrategy decides how long an idle worker pauses between steal
// sweeps (internal only).
//
// Note: This interface is exported so the forkjoin package can configure
// strategies, but implementations remain internal.
type BackoffStrategy interface {
	// NextDelay calculates the pause before the next steal sweep.
	// missedSweeps counts consecutive sweeps that found no work,
	// starting at 1 for the first empty sweep.
	// Returns the duration to pause before probing the deques again.
	NextDelay(missedSweeps int) time.Duration

	// Reset clears any internal state (for stateful strategies like
	// decorrelated jitter). Called whenever a worker obtains a job.
	Reset()
}
