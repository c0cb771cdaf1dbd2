// Package pipeline provides the issue-side machinery of the SM core: the
// warp scheduler, decode and dual-issue logic, the scoreboard, the operand
// collector, the barrier unit, and the writeback arbiter with wrong-path
// squashing.
package pipeline

import "github.com/sarchlab/milosim/emu"

// Scoreboard tracks one pending-write bit per (warp, register) and per
// (warp, predicate register). A bit is set at issue, before dispatch, and
// cleared at writeback; this is the entire RAW/WAW protection mechanism, so
// out-of-order completion is safe by construction.
//
// The invariant is at most one outstanding writer per register per warp:
// issue refuses a second writer until the bit clears.
type Scoreboard struct {
	regs  []uint64 // one bit per register, per warp
	preds []uint8  // one bit per predicate register, per warp
}

// NewScoreboard creates a scoreboard for the given number of warps.
func NewScoreboard(numWarps int) *Scoreboard {
	return &Scoreboard{
		regs:  make([]uint64, numWarps),
		preds: make([]uint8, numWarps),
	}
}

// SetReg marks a register write as outstanding. Register 0 is hardwired
// zero and never tracked.
func (s *Scoreboard) SetReg(warp int, reg uint8) {
	if reg == 0 || reg >= emu.NumRegs {
		return
	}
	s.regs[warp] |= 1 << uint(reg)
}

// ClearReg clears an outstanding register write.
func (s *Scoreboard) ClearReg(warp int, reg uint8) {
	if reg >= emu.NumRegs {
		return
	}
	s.regs[warp] &^= 1 << uint(reg)
}

// RegPending reports whether a register has an outstanding writer.
func (s *Scoreboard) RegPending(warp int, reg uint8) bool {
	if reg == 0 || reg >= emu.NumRegs {
		return false
	}
	return s.regs[warp]&(1<<uint(reg)) != 0
}

// SetPred marks a predicate write as outstanding.
func (s *Scoreboard) SetPred(warp int, pred uint8) {
	if pred >= emu.NumPredRegs {
		return
	}
	s.preds[warp] |= 1 << uint(pred)
}

// ClearPred clears an outstanding predicate write.
func (s *Scoreboard) ClearPred(warp int, pred uint8) {
	if pred >= emu.NumPredRegs {
		return
	}
	s.preds[warp] &^= 1 << uint(pred)
}

// PredPending reports whether a predicate register has an outstanding
// writer.
func (s *Scoreboard) PredPending(warp int, pred uint8) bool {
	if pred >= emu.NumPredRegs {
		return false
	}
	return s.preds[warp]&(1<<uint(pred)) != 0
}

// AnyPending reports whether the warp has any outstanding writes at all.
func (s *Scoreboard) AnyPending(warp int) bool {
	return s.regs[warp] != 0 || s.preds[warp] != 0
}
