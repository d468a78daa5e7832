package scheduler

import (
	"fmt"
	"os"
)

// FatalKind classifies unrecoverable design-assumption violations. These
// are distinct from the ordinary "no job" result, which is not an error
// at all.
type FatalKind int

const (
	// FatalDequeOverflow: a worker spawned more concurrently live jobs
	// than its deque's fixed capacity allows.
	FatalDequeOverflow FatalKind = iota
	// FatalTagExhausted: the ABA tag counter would wrap. Practically
	// unreachable.
	FatalTagExhausted
)

func (k FatalKind) String() string {
	switch k {
	case FatalDequeOverflow:
		return "deque overflow"
	case FatalTagExhausted:
		return "tag exhausted"
	default:
		return "unknown"
	}
}

// FatalError reports a violated design-time assumption. The runtime never
// recovers these: dropping spawned work would corrupt the fork-join
// contract, so the error is written to stderr and then panicked.
type FatalError struct {
	Kind FatalKind
	msg  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("forkjoin: fatal (%s): %s", e.Kind, e.msg)
}

func fatalf(kind FatalKind, format string, args ...any) {
	err := &FatalError{Kind: kind, msg: fmt.Sprintf(format, args...)}
	fmt.Fprintln(os.Stderr, err)
	panic(err)
}
