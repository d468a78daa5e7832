package scheduler

import (
	"math"
	"sync/atomic"
)

const (
	cacheLinePadding = 64

	// DefaultDequeCapacity bounds the number of concurrently live jobs one
	// worker may have spawned and not yet resolved. Recursive fork-join
	// workloads need roughly their recursion depth, so the default leaves
	// a wide margin.
	DefaultDequeCapacity = 200
)

// The age word packs (tag, top) into one uint64 so a single CAS updates
// both fields together. top is the index of the next slot a thief may
// claim; tag counts empty transitions. Without the tag, a thief holding a
// stale snapshot could succeed its CAS against a later state that happens
// to carry the same top value (the ABA problem) and claim a job that was
// already popped and replaced.

func packAge(tag, top uint32) uint64 {
	return uint64(tag)<<32 | uint64(top)
}

func ageTag(age uint64) uint32 {
	return uint32(age >> 32)
}

func ageTop(age uint64) uint32 {
	return uint32(age)
}

// Deque is a bounded lock-free work-stealing deque of job references.
//
// Concurrency model:
//   - bottom is modified only by the owning worker (single writer)
//   - age (tag, top) is modified by thieves and by the owner's
//     empty transition, always through CAS or a normalizing store
//   - slots are atomic pointers so a thief reading through a stale
//     (tag, top) snapshot never races an owner's concurrent push
//
// The owner pushes and pops at the bottom in LIFO order; thieves claim
// slots at the top in FIFO order. Elements in [top, bottom) are live;
// storage outside that range may hold stale references which are never
// returned, because every claim recomputes the live range first.
//
// All index and age accesses go through sync/atomic, whose operations are
// sequentially consistent. That subsumes the release/acquire pairing this
// algorithm needs: a pushed job is visible to any thief that observes the
// incremented bottom, and an owner's bottom decrement is visible to
// thieves before the owner reads the slot and the age word.
type Deque struct {
	slots    []atomic.Pointer[Job]
	capacity uint32

	// Padding keeps the age word off the slots header cache line,
	// and bottom off the age line, so thief CAS traffic does not
	// invalidate the owner's bottom accesses.
	_   [cacheLinePadding]byte
	age atomic.Uint64

	_      [cacheLinePadding - 8]byte
	bottom atomic.Uint32
}

// NewDeque allocates a deque with the given capacity. A capacity of 0 or
// less selects DefaultDequeCapacity.
func NewDeque(capacity int) *Deque {
	if capacity <= 0 {
		capacity = DefaultDequeCapacity
	}
	return &Deque{
		slots:    make([]atomic.Pointer[Job], capacity),
		capacity: uint32(capacity), // #nosec G115 -- capacity is validated positive
	}
}

// PushBottom appends a job at the bottom of the deque. Owner only; this
// is wait-free and never contends with thieves, which operate on age.
//
// A full deque means the workload exceeded the fixed bound on
// concurrently live spawned jobs, which is a violated design assumption
// rather than a runtime condition: silently dropping the job would break
// the fork-join contract, so this is fatal.
func (d *Deque) PushBottom(j *Job) {
	b := d.bottom.Load()
	if b >= d.capacity {
		fatalf(FatalDequeOverflow, "deque capacity %d exceeded", d.capacity)
	}
	d.slots[b].Store(j)
	d.bottom.Store(b + 1)
}

// PopBottom removes and returns the most recently pushed job, or nil if
// the deque is empty to the owner. Owner only, but it races with thieves
// at the last element.
//
// The decremented bottom is published before the slot and age reads, so
// thieves observe a consistent boundary: once bottom is b, no thief can
// claim slot b. If the popped slot is above top, no thief can hold it and
// the job is returned directly. Otherwise this was (or is about to
// become) the last element: the owner resets bottom to 0 and attempts a
// single CAS installing (tag+1, 0). Winning the CAS claims the job;
// losing it means a thief got there first, in which case the fresh age is
// stored anyway so the deque is normalized for the next cycle.
func (d *Deque) PopBottom() *Job {
	b := d.bottom.Load()
	if b == 0 {
		return nil
	}
	b--
	d.bottom.Store(b)

	j := d.slots[b].Load()
	old := d.age.Load()
	if b > ageTop(old) {
		return j
	}

	d.bottom.Store(0)
	tag := ageTag(old)
	if tag == math.MaxUint32 {
		fatalf(FatalTagExhausted, "deque tag counter exhausted")
	}
	fresh := packAge(tag+1, 0)

	if b == ageTop(old) && d.age.CompareAndSwap(old, fresh) {
		return j
	}
	d.age.Store(fresh)
	return nil
}

// PopTop attempts to claim the oldest job in the deque on behalf of a
// thief. It returns nil both when the deque looks empty and when the
// claiming CAS loses to another thief or to the owner's empty transition.
// A nil from a non-empty deque is an ordinary contention signal; callers
// retry elsewhere.
func (d *Deque) PopTop() *Job {
	old := d.age.Load()
	b := d.bottom.Load()
	t := ageTop(old)
	if b <= t {
		return nil
	}

	j := d.slots[t].Load()
	if d.age.CompareAndSwap(old, packAge(ageTag(old), t+1)) {
		return j
	}
	return nil
}

// Len reports the approximate number of live jobs. The result may be
// stale immediately; it exists for tests and debug output, not for
// synchronization decisions.
func (d *Deque) Len() int {
	b := d.bottom.Load()
	t := ageTop(d.age.Load())
	if b <= t {
		return 0
	}
	return int(b - t)
}
