package pipeline

import (
	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
)

// WBClass identifies the completion queue an in-flight instruction drains
// through. The order of the constants is the arbitration priority: memory
// results first, then SFU, FPU, ALU.
type WBClass int

// Writeback classes, highest priority first.
const (
	WBMem WBClass = iota
	WBSFU
	WBFPU
	WBALU

	numWBClasses
)

// Completion is one writeback event waiting in a class queue. A split load
// produces several completions, only the last of which clears the scoreboard
// and retires the instruction. A squashed instruction arrives as a shadow
// completion: it clears its scoreboard reservation and nothing else.
type Completion struct {
	Class  WBClass
	WarpID int
	Inst   *insts.Instruction

	// ReadyCycle is the first cycle the result may commit. Within a queue
	// the head blocks until ready, which keeps each class in order.
	ReadyCycle uint64

	// Mask selects the lanes the result applies to.
	Mask uint32

	// Value is the result vector for register-writing completions.
	Value emu.Vector

	// PredBits carries the lane outcomes of a SETP.
	PredBits uint32

	// WriteReg commits Value to Inst.Rd; it costs the destination bank's
	// write port for the cycle.
	WriteReg bool

	// WritePred commits PredBits to the destination predicate register.
	WritePred bool

	// ClearSB releases the scoreboard reservation of the instruction.
	ClearSB bool

	// Retire counts the instruction as committed in the statistics.
	Retire bool

	// Shadow marks a squashed wrong-path instruction: it only clears the
	// scoreboard.
	Shadow bool
}

// WritebackStats counts writeback activity.
type WritebackStats struct {
	// Retired is the number of committed instructions.
	Retired uint64

	// Squashed is the number of wrong-path instructions drained as
	// shadows.
	Squashed uint64

	// BankStalls is the number of cycles a queue head waited for a
	// register-bank write port.
	BankStalls uint64
}

// WritebackArbiter drains the per-class completion queues into the register
// and predicate files. Each queue is strictly in order; across queues the
// fixed priority WBMem > WBSFU > WBFPU > WBALU decides who gets a bank's
// single write port when destinations collide. A blocked head stalls only
// its own queue.
type WritebackArbiter struct {
	queues   [numWBClasses][]*Completion
	regFile  *emu.RegFile
	predFile *emu.PredFile
	sb       *Scoreboard

	// collector is notified of committed register values so waiting
	// operand slots can snoop them off the writeback bus.
	collector *Collector

	stats WritebackStats
}

// NewWritebackArbiter creates a writeback arbiter over the architectural
// state.
func NewWritebackArbiter(
	regFile *emu.RegFile,
	predFile *emu.PredFile,
	sb *Scoreboard,
	collector *Collector,
) *WritebackArbiter {
	return &WritebackArbiter{
		regFile:   regFile,
		predFile:  predFile,
		sb:        sb,
		collector: collector,
	}
}

// Stats returns writeback statistics.
func (a *WritebackArbiter) Stats() WritebackStats {
	return a.stats
}

// Push enqueues a completion on its class queue. Callers must push in
// program order per class; the queues preserve that order through commit.
func (a *WritebackArbiter) Push(c *Completion) {
	a.queues[c.Class] = append(a.queues[c.Class], c)
}

// Pending returns the total number of queued completions.
func (a *WritebackArbiter) Pending() int {
	n := 0
	for i := range a.queues {
		n += len(a.queues[i])
	}
	return n
}

// Tick commits ready completions for one cycle. Each register bank accepts
// one write; higher-priority classes claim ports first. Shadow and
// predicate-only completions do not occupy a bank port.
func (a *WritebackArbiter) Tick(cycle uint64) {
	var bankUsed [emu.NumRegBanks]bool

	for class := WBMem; class < numWBClasses; class++ {
		q := a.queues[class]
		for len(q) > 0 {
			c := q[0]
			if c.ReadyCycle > cycle {
				break
			}

			if c.Shadow {
				a.clearReservation(c)
				a.stats.Squashed++
				q = q[1:]
				continue
			}

			if c.WriteReg {
				bank := emu.Bank(c.Inst.Rd)
				if bankUsed[bank] {
					a.stats.BankStalls++
					break
				}
				a.regFile.Write(c.WarpID, c.Inst.Rd, c.Value, c.Mask)
				a.collector.NoteWriteback(c.WarpID, c.Inst.Rd)
				bankUsed[bank] = true
			}
			if c.WritePred {
				a.predFile.Write(c.WarpID, c.Inst.DstPred(), c.PredBits, c.Mask)
			}
			if c.ClearSB {
				a.clearReservation(c)
			}
			if c.Retire {
				a.stats.Retired++
			}
			q = q[1:]
		}
		a.queues[class] = q
	}
}

// clearReservation releases the scoreboard bits the instruction set at
// issue.
func (a *WritebackArbiter) clearReservation(c *Completion) {
	if c.Inst.WritesRd() {
		a.sb.ClearReg(c.WarpID, c.Inst.Rd)
	}
	if c.Inst.WritesPred() {
		a.sb.ClearPred(c.WarpID, c.Inst.DstPred())
	}
}
