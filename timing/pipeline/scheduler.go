package pipeline

// Scheduler implements the greedy-then-round-robin warp selection policy.
//
// As long as the previously selected warp remains eligible it is re-selected
// without moving the round-robin pointer. Otherwise the scheduler searches
// all warp slots starting at the pointer, selects the first eligible warp w,
// and sets the pointer to (w+1) mod N. No eligible warp is a normal stall,
// not an error.
type Scheduler struct {
	numWarps int
	rrPtr    int
	last     int
}

// NewScheduler creates a scheduler over the given number of warp slots.
func NewScheduler(numWarps int) *Scheduler {
	return &Scheduler{
		numWarps: numWarps,
		last:     -1,
	}
}

// Pick selects a warp for this cycle, or -1 when no warp is eligible.
// eligible is evaluated against the previous cycle's committed state.
func (s *Scheduler) Pick(eligible func(warpID int) bool) int {
	if s.last >= 0 && eligible(s.last) {
		return s.last
	}

	for i := 0; i < s.numWarps; i++ {
		w := (s.rrPtr + i) % s.numWarps
		if eligible(w) {
			s.rrPtr = (w + 1) % s.numWarps
			s.last = w
			return w
		}
	}

	s.last = -1
	return -1
}

// Invalidate drops the greedy hold on the last selected warp. The issue
// logic calls it when the selected warp turned out to be blocked, so the
// next cycle falls through to the round-robin search.
func (s *Scheduler) Invalidate() {
	s.last = -1
}

// RRPtr returns the round-robin pointer, exposed for invariant checking.
func (s *Scheduler) RRPtr() int {
	return s.rrPtr
}

// Last returns the warp held by the greedy policy, or -1.
func (s *Scheduler) Last() int {
	return s.last
}
