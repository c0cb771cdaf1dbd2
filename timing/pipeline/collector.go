package pipeline

import (
	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
)

// NumCUsPerWarp is the number of collector units each warp owns: room for
// two dual-issue groups in flight, so a fresh pair can issue while the
// previous one is still collecting or waiting on a port.
const NumCUsPerWarp = 4

// operandSlot tracks one source operand of an admitted instruction.
type operandSlot struct {
	needed bool
	got    bool
	reg    uint8
	value  emu.Vector
}

// CollectorUnit holds one admitted instruction and its partially-filled
// operand buffer. The unit becomes dispatch-ready only when every required
// operand has been collected, via a bank read or a writeback-bus snoop.
type CollectorUnit struct {
	busy  bool
	in    IssuedInst
	slots [3]operandSlot

	// guard and selPred are predicate-file reads; the predicate file has
	// no banking, so they fill at allocation.
	guard   uint32
	selPred uint32
}

// Busy reports whether the unit holds an instruction.
func (cu *CollectorUnit) Busy() bool {
	return cu.busy
}

// Ready reports whether all operands are collected and the unit is eligible
// for dispatch.
func (cu *CollectorUnit) Ready() bool {
	if !cu.busy {
		return false
	}
	for i := range cu.slots {
		if cu.slots[i].needed && !cu.slots[i].got {
			return false
		}
	}
	return true
}

// Collector is the operand-collection stage: a pool of per-warp collector
// units fed by a banked register file. A bank arbiter grants at most one
// read per bank per cycle across all active units, round-robin among
// conflicting requesters; bank conflicts delay only the affected unit.
type Collector struct {
	units    []CollectorUnit
	bankPtr  [emu.NumRegBanks]int
	regFile  *emu.RegFile
	predFile *emu.PredFile

	// wbSnoop is the set of registers written back this cycle, keyed by
	// warp and register. Units waiting on one of them capture the value
	// off the writeback bus instead of spending a bank port.
	wbSnoop map[snoopKey]struct{}

	stats CollectorStats
}

type snoopKey struct {
	warpID int
	reg    uint8
}

// CollectorStats counts operand-collection activity.
type CollectorStats struct {
	// BankReads is the number of granted register-bank reads.
	BankReads uint64

	// BankConflicts is the number of deferred requests due to a bank
	// port being taken.
	BankConflicts uint64

	// SnoopFills is the number of operands captured off the writeback
	// bus.
	SnoopFills uint64
}

// NewCollector creates the collector-unit pool for the given number of
// warps.
func NewCollector(numWarps int, regFile *emu.RegFile, predFile *emu.PredFile) *Collector {
	return &Collector{
		units:    make([]CollectorUnit, numWarps*NumCUsPerWarp),
		regFile:  regFile,
		predFile: predFile,
		wbSnoop:  make(map[snoopKey]struct{}),
	}
}

// Stats returns collection statistics.
func (c *Collector) Stats() CollectorStats {
	return c.stats
}

// FreeFor returns the number of free collector units for a warp.
func (c *Collector) FreeFor(warpID int) int {
	free := 0
	for i := warpID * NumCUsPerWarp; i < (warpID+1)*NumCUsPerWarp; i++ {
		if !c.units[i].busy {
			free++
		}
	}
	return free
}

// Allocate admits an issued instruction into a free collector unit of its
// warp. It reports false when the warp has no free unit.
func (c *Collector) Allocate(ii IssuedInst) bool {
	for i := ii.WarpID * NumCUsPerWarp; i < (ii.WarpID+1)*NumCUsPerWarp; i++ {
		cu := &c.units[i]
		if cu.busy {
			continue
		}

		cu.busy = true
		cu.in = ii
		c.setUpSlots(cu)

		cu.guard = c.guardBits(ii.WarpID, ii.Inst)
		if ii.Inst.Op == insts.OpSELP {
			cu.selPred = c.predFile.Read(ii.WarpID, ii.Inst.Rs3&0x7)
		}
		return true
	}
	return false
}

// guardBits resolves the guard predicate lane bits for an instruction.
func (c *Collector) guardBits(warpID int, inst *insts.Instruction) uint32 {
	bits := c.predFile.Read(warpID, inst.Pred)
	if inst.PredNegate {
		bits = ^bits
	}
	return bits
}

// setUpSlots derives the operand slots from the instruction encoding:
// slot 0 is Rs1, slot 1 is Rs2 (or the store data register), slot 2 is Rs3.
// A slot whose register is the immediate sentinel fills with the broadcast
// sign-extended immediate.
func (c *Collector) setUpSlots(cu *CollectorUnit) {
	inst := cu.in.Inst
	for i := range cu.slots {
		cu.slots[i] = operandSlot{}
	}

	srcs := inst.SrcRegs()
	needs := func(reg uint8) bool {
		for _, s := range srcs {
			if s == reg {
				return true
			}
		}
		return false
	}

	// Slot A: Rs1 or broadcast immediate (MOV #imm).
	if needs(inst.Rs1) {
		cu.slots[0] = operandSlot{needed: true, reg: inst.Rs1}
	} else if inst.Rs1 == insts.RegNone && inst.Op == insts.OpMOV {
		cu.slots[0] = operandSlot{needed: true, got: true, value: broadcast(uint32(inst.SImm()))}
	}

	// Slot B: Rs2 or broadcast immediate for two-operand forms.
	if inst.Rs2 != insts.RegNone && needs(inst.Rs2) {
		cu.slots[1] = operandSlot{needed: true, reg: inst.Rs2}
	} else if inst.Rs2 == insts.RegNone && usesOperandBPipeline(inst) {
		cu.slots[1] = operandSlot{needed: true, got: true, value: broadcast(uint32(inst.SImm()))}
	}

	// Slot C: Rs3 for three-operand forms.
	if inst.HasRs3 && inst.Op != insts.OpSELP {
		cu.slots[2] = operandSlot{needed: true, reg: inst.Rs3}
	}

	// Register 0 is hardwired zero: no bank port needed.
	for i := range cu.slots {
		s := &cu.slots[i]
		if s.needed && !s.got && s.reg == 0 {
			s.got = true
			s.value = emu.Vector{}
		}
	}
}

// NoteWriteback records that a register was committed this cycle so waiting
// units can snoop it off the writeback bus.
func (c *Collector) NoteWriteback(warpID int, reg uint8) {
	c.wbSnoop[snoopKey{warpID: warpID, reg: reg}] = struct{}{}
}

// Collect runs one cycle of operand gathering: first the snoop path, then
// bank-arbitrated register reads. Bank conflicts stall only the losing
// units.
func (c *Collector) Collect() {
	// Snoop path: operands whose register was written back this cycle
	// read the fresh value directly, bypassing the banks.
	for i := range c.units {
		cu := &c.units[i]
		if !cu.busy {
			continue
		}
		for s := range cu.slots {
			slot := &cu.slots[s]
			if !slot.needed || slot.got {
				continue
			}
			if _, ok := c.wbSnoop[snoopKey{warpID: cu.in.WarpID, reg: slot.reg}]; ok {
				slot.value = c.regFile.Read(cu.in.WarpID, slot.reg)
				slot.got = true
				c.stats.SnoopFills++
			}
		}
	}

	// Bank arbitration: one read per bank per cycle, round-robin across
	// requesting units. A granted read fills every pending slot of that
	// unit naming the same register.
	var granted [emu.NumRegBanks]bool
	for bank := 0; bank < emu.NumRegBanks; bank++ {
		n := len(c.units)
		for off := 0; off < n; off++ {
			idx := (c.bankPtr[bank] + off) % n
			cu := &c.units[idx]
			if !cu.busy {
				continue
			}

			want := uint8(0xFF)
			for s := range cu.slots {
				slot := &cu.slots[s]
				if slot.needed && !slot.got && emu.Bank(slot.reg) == bank {
					want = slot.reg
					break
				}
			}
			if want == 0xFF {
				continue
			}

			if granted[bank] {
				c.stats.BankConflicts++
				continue
			}

			value := c.regFile.Read(cu.in.WarpID, want)
			for s := range cu.slots {
				slot := &cu.slots[s]
				if slot.needed && !slot.got && slot.reg == want {
					slot.value = value
					slot.got = true
				}
			}
			granted[bank] = true
			c.stats.BankReads++
			c.bankPtr[bank] = (idx + 1) % n
		}
	}

	// The snoop set only lives for one cycle.
	clear(c.wbSnoop)
}

// OlderPending reports whether the warp still holds an instruction older
// than seq in any of its units. Dispatch uses it to drain a warp's units in
// program order, so nothing slips past an unresolved branch.
func (c *Collector) OlderPending(warpID int, seq uint64) bool {
	for i := warpID * NumCUsPerWarp; i < (warpID+1)*NumCUsPerWarp; i++ {
		cu := &c.units[i]
		if cu.busy && cu.in.Seq < seq {
			return true
		}
	}
	return false
}

// ReadyUnits returns the indices of dispatch-ready units, in unit order.
func (c *Collector) ReadyUnits() []int {
	var ready []int
	for i := range c.units {
		if c.units[i].Ready() {
			ready = append(ready, i)
		}
	}
	return ready
}

// Unit returns a collector unit by index.
func (c *Collector) Unit(idx int) *CollectorUnit {
	return &c.units[idx]
}

// Operands returns the collected operand vectors of a ready unit.
func (cu *CollectorUnit) Operands() (a, b, cc emu.Vector) {
	return cu.slots[0].value, cu.slots[1].value, cu.slots[2].value
}

// Guard returns the guard predicate lane bits.
func (cu *CollectorUnit) Guard() uint32 {
	return cu.guard
}

// SelPred returns the SELP selector predicate lane bits.
func (cu *CollectorUnit) SelPred() uint32 {
	return cu.selPred
}

// In returns the in-flight instruction record.
func (cu *CollectorUnit) In() IssuedInst {
	return cu.in
}

// Release frees a dispatched unit.
func (c *Collector) Release(idx int) {
	c.units[idx] = CollectorUnit{}
}

// usesOperandBPipeline mirrors the decoder's immediate-operand rule for
// two-operand instruction forms.
func usesOperandBPipeline(inst *insts.Instruction) bool {
	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpIDIV, insts.OpIREM,
		insts.OpIMIN, insts.OpIMAX, insts.OpSLT, insts.OpSLE, insts.OpSEQ,
		insts.OpAND, insts.OpOR, insts.OpXOR,
		insts.OpSHL, insts.OpSHR, insts.OpSHA:
		return true
	default:
		return false
	}
}

func broadcast(v uint32) emu.Vector {
	var vec emu.Vector
	for i := range vec {
		vec[i] = v
	}
	return vec
}
