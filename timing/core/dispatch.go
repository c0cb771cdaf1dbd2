package core

import (
	"sort"

	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/pipeline"
)

// wbClassOf maps an execution class to its writeback queue.
func wbClassOf(class insts.Class) pipeline.WBClass {
	switch class {
	case insts.ClassSFU:
		return pipeline.WBSFU
	case insts.ClassFPU:
		return pipeline.WBFPU
	case insts.ClassLSU:
		return pipeline.WBMem
	default:
		return pipeline.WBALU
	}
}

// dispatch drains ready collector units into the execution ports, one
// instruction per class per cycle, oldest instruction first and in program
// order within a warp: a younger instruction never dispatches while an
// older one of the same warp is still collecting, so it cannot slip past an
// unresolved branch. The branch tag is re-checked here: instructions
// fetched under a stale tag turn into shadow NOPs whose only effect is
// releasing their scoreboard reservation.
func (c *Core) dispatch() {
	var portUsed [insts.ClassCTRL + 1]bool

	ready := c.collector.ReadyUnits()
	sort.Slice(ready, func(i, j int) bool {
		return c.collector.Unit(ready[i]).In().Seq < c.collector.Unit(ready[j]).In().Seq
	})

	for _, idx := range ready {
		cu := c.collector.Unit(idx)
		ii := cu.In()
		class := ii.Inst.Class

		if c.collector.OlderPending(ii.WarpID, ii.Seq) {
			continue
		}

		if portUsed[class] {
			continue
		}
		portUsed[class] = true

		w := c.warps[ii.WarpID]

		if ii.Tag != w.BranchTag {
			c.squash(ii)
			c.collector.Release(idx)
			continue
		}

		effMask := ii.Mask & cu.Guard()

		switch class {
		case insts.ClassCTRL:
			c.pendingCtrl[ii.WarpID]--
			c.execCtrl(ii, cu, effMask)
			c.directRetired++
		case insts.ClassLSU:
			c.dispatchMem(ii, cu, effMask)
		default:
			c.dispatchFU(ii, cu, effMask)
		}

		c.collector.Release(idx)
	}
}

// squash converts a wrong-path instruction into a shadow NOP.
func (c *Core) squash(ii pipeline.IssuedInst) {
	if ii.Inst.Class == insts.ClassCTRL {
		c.pendingCtrl[ii.WarpID]--
		c.stats.Squashes++
		return
	}

	if !ii.Inst.WritesRd() && !ii.Inst.WritesPred() {
		// Nothing was reserved; a squashed store vanishes here.
		c.stats.Squashes++
		return
	}

	c.wb.Push(&pipeline.Completion{
		Class:      wbClassOf(ii.Inst.Class),
		WarpID:     ii.WarpID,
		Inst:       ii.Inst,
		ReadyCycle: c.cycle + c.lat.GetLatency(ii.Inst),
		Shadow:     true,
	})
}

// dispatchFU sends an ALU, FPU, or SFU instruction to its functional unit
// and queues the result for writeback after the class latency.
func (c *Core) dispatchFU(ii pipeline.IssuedInst, cu *pipeline.CollectorUnit, effMask uint32) {
	inst := ii.Inst

	if effMask == 0 {
		c.retireInert(ii)
		return
	}

	a, b, cc := cu.Operands()
	rsp := c.unitFor(inst.Class).Execute(emu.FUReq{
		Inst:    inst,
		SrcA:    a,
		SrcB:    b,
		SrcC:    cc,
		SelPred: cu.SelPred(),
		Mask:    effMask,
		WarpID:  ii.WarpID,
	})
	c.flags |= rsp.Flags

	c.wb.Push(&pipeline.Completion{
		Class:      wbClassOf(inst.Class),
		WarpID:     ii.WarpID,
		Inst:       inst,
		ReadyCycle: c.cycle + c.lat.GetLatency(inst),
		Mask:       effMask,
		Value:      rsp.Result,
		PredBits:   rsp.PredBits,
		WriteReg:   inst.WritesRd(),
		WritePred:  inst.WritesPred(),
		ClearSB:    true,
		Retire:     true,
	})
}

// dispatchMem computes lane addresses and hands the access to the LSU.
// Stores retire at dispatch; loads retire when their last response commits.
func (c *Core) dispatchMem(ii pipeline.IssuedInst, cu *pipeline.CollectorUnit, effMask uint32) {
	inst := ii.Inst

	if effMask == 0 {
		c.retireInert(ii)
		return
	}

	base, data, _ := cu.Operands()
	offset := inst.SImm()

	var addrs [emu.NumLanes]uint64
	for lane := 0; lane < emu.NumLanes; lane++ {
		if effMask&(1<<uint(lane)) != 0 {
			addrs[lane] = uint64(base[lane] + uint32(offset))
		}
	}

	if inst.IsShared() {
		c.ldu.AccessShared(ii, addrs, effMask, data, c.cycle)
	} else {
		c.ldu.AccessGlobal(ii, addrs, effMask, data)
	}

	if inst.IsStore() {
		c.directRetired++
	}
}

// retireInert retires an instruction whose effective mask came out empty. It
// still owes the scoreboard its reservation back.
func (c *Core) retireInert(ii pipeline.IssuedInst) {
	inst := ii.Inst

	if !inst.WritesRd() && !inst.WritesPred() {
		c.directRetired++
		return
	}

	c.wb.Push(&pipeline.Completion{
		Class:      wbClassOf(inst.Class),
		WarpID:     ii.WarpID,
		Inst:       inst,
		ReadyCycle: c.cycle + c.lat.GetLatency(inst),
		ClearSB:    true,
		Retire:     true,
	})
}

func (c *Core) unitFor(class insts.Class) emu.FuncUnit {
	switch class {
	case insts.ClassFPU:
		return c.fpu
	case insts.ClassSFU:
		return c.sfu
	default:
		return c.alu
	}
}
