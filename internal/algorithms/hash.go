package algorithms

// Mix64 is a 64-bit finalizing hash (the splitmix64 mixer). It maps a
// counter-like input to a value whose low bits are uniformly distributed,
// which is what victim selection in the steal loop needs: consecutive
// attempt numbers must not probe consecutive deques.
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// StealTarget picks a pseudo-random victim deque for a thief. The choice
// mixes the worker's stable id with its monotonically increasing attempt
// counter, so distinct workers sweep the deques in unrelated orders while
// each worker still visits all of them with high probability.
func StealTarget(workerID int, attempt uint64, numDeques int) int {
	h := Mix64(uint64(workerID)) + Mix64(attempt)
	return int(h % uint64(numDeques)) // #nosec G115 -- numDeques is small and positive
}
