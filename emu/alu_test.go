package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
)

func vec(v uint32) emu.Vector {
	var out emu.Vector
	for i := range out {
		out[i] = v
	}
	return out
}

var _ = Describe("IntUnit", func() {
	var unit *emu.IntUnit

	BeforeEach(func() {
		unit = emu.NewIntUnit()
	})

	It("should add per lane", func() {
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpADD},
			SrcA: vec(40),
			SrcB: vec(2),
			Mask: emu.FullMask,
		})
		Expect(rsp.Valid).To(BeTrue())
		Expect(rsp.Result[0]).To(Equal(uint32(42)))
		Expect(rsp.Result[31]).To(Equal(uint32(42)))
	})

	It("should leave masked-off lanes untouched", func() {
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpADD},
			SrcA: vec(1),
			SrcB: vec(1),
			Mask: 0x1,
		})
		Expect(rsp.Result[0]).To(Equal(uint32(2)))
		Expect(rsp.Result[1]).To(Equal(uint32(0)))
	})

	It("should flag division by zero and force zero", func() {
		var b emu.Vector
		b[0] = 7 // lane 0 divides fine, the rest divide by zero
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpIDIV},
			SrcA: vec(14),
			SrcB: b,
			Mask: emu.FullMask,
		})
		Expect(rsp.Flags & emu.FlagDivZero).NotTo(BeZero())
		Expect(rsp.Result[0]).To(Equal(uint32(2)))
		Expect(rsp.Result[1]).To(Equal(uint32(0)))
	})

	It("should select by the selector predicate in SELP", func() {
		rsp := unit.Execute(emu.FUReq{
			Inst:    &insts.Instruction{Op: insts.OpSELP},
			SrcA:    vec(1),
			SrcB:    vec(2),
			SelPred: 0x0000FFFF,
			Mask:    emu.FullMask,
		})
		Expect(rsp.Result[0]).To(Equal(uint32(1)))
		Expect(rsp.Result[16]).To(Equal(uint32(2)))
	})

	It("should produce globally unique thread IDs", func() {
		seen := map[uint32]bool{}
		for warpID := 0; warpID < 4; warpID++ {
			rsp := unit.Execute(emu.FUReq{
				Inst:   &insts.Instruction{Op: insts.OpTID},
				Mask:   emu.FullMask,
				WarpID: warpID,
			})
			for lane := 0; lane < emu.NumLanes; lane++ {
				id := rsp.Result[lane]
				Expect(seen[id]).To(BeFalse(), "duplicate thread ID %d", id)
				seen[id] = true
				Expect(id).To(Equal(uint32(warpID*emu.NumLanes + lane)))
			}
		}
	})

	It("should set predicate bits for ISETP on active lanes only", func() {
		var a emu.Vector
		for i := range a {
			a[i] = uint32(i)
		}
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpISETP, Imm: insts.CmpLT},
			SrcA: a,
			SrcB: vec(16),
			Mask: emu.FullMask,
		})
		Expect(rsp.PredBits).To(Equal(uint32(0x0000FFFF)))
	})

	It("should mask shift amounts to five bits", func() {
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpSHL},
			SrcA: vec(1),
			SrcB: vec(33),
			Mask: 0x1,
		})
		Expect(rsp.Result[0]).To(Equal(uint32(2)))
	})

	It("should reject non-integer opcodes", func() {
		rsp := unit.Execute(emu.FUReq{
			Inst: &insts.Instruction{Op: insts.OpFADD},
			Mask: 0x1,
		})
		Expect(rsp.Valid).To(BeFalse())
	})
})
