package warp

// Token distinguishes the two kinds of divergence-stack entries.
type Token uint8

// Divergence-stack entry tokens.
const (
	// TokenSync marks the reconvergence entry pushed by SSY: full mask
	// and the reconvergence PC.
	TokenSync Token = iota

	// TokenDiv marks the deferred-path entry pushed by a divergent
	// branch: the not-taken lanes and their resume PC.
	TokenDiv
)

// DivEntry is one divergence-stack record.
type DivEntry struct {
	// Mask is the active mask to restore.
	Mask uint32

	// PC is the instruction index to resume at.
	PC uint64

	// Token tells JOIN whether this entry switches to the deferred path
	// or reconverges.
	Token Token
}

// DivergenceStack is the bounded per-warp SIMT reconvergence stack. The two
// sides of a divergent branch execute serially: the taken side runs first
// while the deferred side sits on the stack under a TokenDiv entry.
type DivergenceStack struct {
	entries [DivStackDepth]DivEntry
	top     int
}

// Push adds an entry. It reports false on overflow, which the core treats
// as a fatal fault.
func (s *DivergenceStack) Push(e DivEntry) bool {
	if s.top >= DivStackDepth {
		return false
	}
	s.entries[s.top] = e
	s.top++
	return true
}

// Pop removes and returns the newest entry. It reports false on underflow.
func (s *DivergenceStack) Pop() (DivEntry, bool) {
	if s.top == 0 {
		return DivEntry{}, false
	}
	s.top--
	return s.entries[s.top], true
}

// Depth returns the number of live entries.
func (s *DivergenceStack) Depth() int {
	return s.top
}

// Clear empties the stack.
func (s *DivergenceStack) Clear() {
	s.top = 0
}

// ReturnStack is the bounded per-warp hardware call/return stack.
type ReturnStack struct {
	entries [RetStackDepth]uint64
	top     int
}

// Push adds a return PC. It reports false on overflow.
func (s *ReturnStack) Push(pc uint64) bool {
	if s.top >= RetStackDepth {
		return false
	}
	s.entries[s.top] = pc
	s.top++
	return true
}

// Pop removes and returns the newest return PC. It reports false on
// underflow.
func (s *ReturnStack) Pop() (uint64, bool) {
	if s.top == 0 {
		return 0, false
	}
	s.top--
	return s.entries[s.top], true
}

// Depth returns the number of live entries.
func (s *ReturnStack) Depth() int {
	return s.top
}

// Clear empties the stack.
func (s *ReturnStack) Clear() {
	s.top = 0
}

// SlotFIFO is the per-warp free transaction-slot FIFO. It holds the 6-bit
// slot IDs not currently bound to an outstanding memory transaction.
type SlotFIFO struct {
	slots [NumMSHRSlots]uint8
	head  int
	count int
}

// Fill resets the FIFO to contain every slot ID in order.
func (f *SlotFIFO) Fill() {
	for i := range f.slots {
		f.slots[i] = uint8(i)
	}
	f.head = 0
	f.count = NumMSHRSlots
}

// Pop removes and returns the oldest free slot ID. It reports false when the
// FIFO is empty, i.e. the warp has 64 transactions outstanding.
func (f *SlotFIFO) Pop() (uint8, bool) {
	if f.count == 0 {
		return 0, false
	}
	id := f.slots[f.head]
	f.head = (f.head + 1) % NumMSHRSlots
	f.count--
	return id, true
}

// Push returns a reclaimed slot ID to the FIFO.
func (f *SlotFIFO) Push(id uint8) {
	tail := (f.head + f.count) % NumMSHRSlots
	f.slots[tail] = id
	f.count++
}

// Len returns the number of free slot IDs.
func (f *SlotFIFO) Len() int {
	return f.count
}
