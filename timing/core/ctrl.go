package core

import (
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/pipeline"
	"github.com/sarchlab/milosim/timing/warp"
)

// execCtrl resolves a control instruction at dispatch. Redirects take effect
// on the warp's architectural PC and bump the branch tag, turning every
// instruction issued down the wrong path into a shadow NOP.
func (c *Core) execCtrl(ii pipeline.IssuedInst, cu *pipeline.CollectorUnit, effMask uint32) {
	w := c.warps[ii.WarpID]
	inst := ii.Inst

	if effMask == 0 {
		return
	}

	target := uint64(int64(inst.SImm()))

	switch inst.Op {
	case insts.OpBRA:
		c.jump(w, ii, target)

	case insts.OpBEQ, insts.OpBNE:
		c.execBranch(w, ii, cu, effMask, target)

	case insts.OpSSY:
		ok := w.DivStack.Push(warp.DivEntry{
			Mask:  w.ActiveMask,
			PC:    target,
			Token: warp.TokenSync,
		})
		if !ok {
			c.raise(ii, warp.FaultDivOverflow)
		}

	case insts.OpJOIN:
		c.execJoin(w, ii)

	case insts.OpBAR:
		// Rewind past the barrier and squash anything issued beyond it;
		// post-barrier work must not run before the release.
		w.PC = ii.PC + 1
		w.BumpTag()
		c.barrier.Arrive(w)

	case insts.OpCALL:
		if !w.RetStack.Push(ii.PC + 1) {
			c.raise(ii, warp.FaultRetOverflow)
			return
		}
		c.jump(w, ii, target)

	case insts.OpRET:
		pc, ok := w.RetStack.Pop()
		if !ok {
			c.raise(ii, warp.FaultRetUnderflow)
			return
		}
		c.jump(w, ii, pc)

	case insts.OpEXIT:
		w.BumpTag()
		c.exitWarp(w)
	}
}

// execBranch evaluates a conditional branch per lane. When both sides have
// lanes the warp diverges: the not-taken lanes park on the stack under a
// TokenDiv entry and the taken side runs first.
func (c *Core) execBranch(
	w *warp.Warp,
	ii pipeline.IssuedInst,
	cu *pipeline.CollectorUnit,
	effMask uint32,
	target uint64,
) {
	a, b, _ := cu.Operands()

	var takenMask uint32
	for lane := 0; lane < len(a); lane++ {
		bit := uint32(1) << uint(lane)
		if effMask&bit == 0 {
			continue
		}
		eq := a[lane] == b[lane]
		if (ii.Inst.Op == insts.OpBEQ) == eq {
			takenMask |= bit
		}
	}

	ntMask := ii.Mask &^ takenMask

	switch {
	case takenMask == 0:
		// Fall through; nothing was disturbed.
	case ntMask == 0:
		c.jump(w, ii, target)
	default:
		ok := w.DivStack.Push(warp.DivEntry{
			Mask:  ntMask,
			PC:    ii.PC + 1,
			Token: warp.TokenDiv,
		})
		if !ok {
			c.raise(ii, warp.FaultDivOverflow)
			return
		}
		w.ActiveMask = takenMask
		c.redirect(w, target)
	}
}

// execJoin pops one divergence entry: a TokenDiv switches to the deferred
// path, a TokenSync reconverges at the SSY target.
func (c *Core) execJoin(w *warp.Warp, ii pipeline.IssuedInst) {
	e, ok := w.DivStack.Pop()
	if !ok {
		c.raise(ii, warp.FaultDivUnderflow)
		return
	}

	maskChanged := e.Mask != w.ActiveMask
	w.ActiveMask = e.Mask

	switch {
	case e.Token == warp.TokenDiv:
		c.redirect(w, e.PC)
	case maskChanged || e.PC != ii.PC+1:
		// A widened mask invalidates in-flight instructions even when the
		// PC would have fallen through anyway.
		c.redirect(w, e.PC)
	}
}

// jump redirects to target unless it is the fall-through path, in which case
// the speculatively issued instructions are already correct.
func (c *Core) jump(w *warp.Warp, ii pipeline.IssuedInst, target uint64) {
	if target == ii.PC+1 {
		return
	}
	c.redirect(w, target)
}

// redirect moves the PC and invalidates everything in flight for the warp.
func (c *Core) redirect(w *warp.Warp, target uint64) {
	w.PC = target
	w.BumpTag()
}

// raise records a fatal stack fault. The first fault wins; the core refuses
// to tick afterwards.
func (c *Core) raise(ii pipeline.IssuedInst, kind warp.FaultKind) {
	if c.fault == nil {
		c.fault = &warp.Fault{Warp: ii.WarpID, PC: ii.PC, Kind: kind}
	}
}
