// Package warp provides the per-warp execution state of the SM core: the
// program counter and active mask, the SIMT divergence and return-address
// stacks, the warp state machine, and the free transaction-ID FIFO for the
// memory subsystem.
package warp

import "github.com/sarchlab/milosim/emu"

// Per-warp structural limits.
const (
	// DivStackDepth is the divergence stack capacity. Nesting deeper is a
	// fatal fault.
	DivStackDepth = 16

	// RetStackDepth is the return-address stack capacity.
	RetStackDepth = 8

	// NumMSHRSlots is the number of outstanding memory transactions a
	// warp may have; the free-ID FIFO holds this many slot IDs at reset.
	NumMSHRSlots = 64
)

// State marks what state a warp is in.
type State int

// All possible warp states.
const (
	StateIdle          State = iota // No program resident
	StateReady                      // Eligible for scheduling
	StateWaitSB                     // Blocked on a scoreboard bit
	StateWaitMem                    // Blocked on transaction-ID exhaustion
	StateWaitBarrier                // Arrived at a barrier, waiting for peers
	StateWaitCollector              // Blocked on a free collector unit
	StateExited                     // Terminal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReady:
		return "READY"
	case StateWaitSB:
		return "WAITING_SCOREBOARD"
	case StateWaitMem:
		return "WAITING_MEM"
	case StateWaitBarrier:
		return "WAITING_BARRIER"
	case StateWaitCollector:
		return "WAITING_OC"
	case StateExited:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Warp holds the per-warp architectural and scheduling state. Warps are
// created at reset and recycled to IDLE on program completion, never
// destroyed.
type Warp struct {
	// ID is the warp slot index.
	ID int

	// PC is the program counter, in instruction-word units.
	PC uint64

	// ActiveMask marks the lanes currently executing.
	ActiveMask uint32

	// State is the scheduling state.
	State State

	// BranchTag is the 2-bit wrong-path filter. It increments on every
	// execute-stage PC redirect; in-flight instructions fetched under an
	// older tag are squashed to shadow NOPs.
	BranchTag uint8

	// BarrierEpoch is the warp's local barrier epoch bit.
	BarrierEpoch bool

	// DivStack is the SIMT reconvergence stack.
	DivStack DivergenceStack

	// RetStack is the hardware call/return stack.
	RetStack ReturnStack

	// FreeIDs is the FIFO of free memory transaction slot IDs.
	FreeIDs SlotFIFO

	// OutstandingMem counts in-flight memory transactions.
	OutstandingMem int
}

// New creates a warp in the IDLE state with a full free-ID FIFO.
func New(id int) *Warp {
	w := &Warp{ID: id}
	w.Reset()
	return w
}

// Reset returns the warp to its power-on state.
func (w *Warp) Reset() {
	w.PC = 0
	w.ActiveMask = 0
	w.State = StateIdle
	w.BranchTag = 0
	w.BarrierEpoch = false
	w.DivStack.Clear()
	w.RetStack.Clear()
	w.FreeIDs.Fill()
	w.OutstandingMem = 0
}

// Start makes the warp runnable at the given PC with all lanes active.
func (w *Warp) Start(pc uint64) {
	w.PC = pc
	w.ActiveMask = emu.FullMask
	w.State = StateReady
}

// BumpTag advances the branch tag, invalidating all in-flight instructions
// fetched under the old tag.
func (w *Warp) BumpTag() {
	w.BranchTag = (w.BranchTag + 1) & 0x3
}

// Runnable reports whether the scheduler may consider this warp.
func (w *Warp) Runnable() bool {
	return w.State == StateReady
}
