package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	It("should decode ADD with three registers", func() {
		// ADD R2, R3, R7
		inst := decoder.Decode(0x0102030700000000)
		Expect(inst.Op).To(Equal(insts.OpADD))
		Expect(inst.Class).To(Equal(insts.ClassALU))
		Expect(inst.Rd).To(Equal(uint8(2)))
		Expect(inst.Rs1).To(Equal(uint8(3)))
		Expect(inst.Rs2).To(Equal(uint8(7)))
	})

	It("should extract the guard predicate and negation", func() {
		inst := decoder.Decode(uint64(insts.OpMOV)<<56 | 0xA<<28)
		Expect(inst.Pred).To(Equal(uint8(2)))
		Expect(inst.PredNegate).To(BeTrue())
	})

	It("should default to the always-true guard", func() {
		word := insts.Encode(&insts.Instruction{Op: insts.OpNOP, Pred: insts.PredAlways})
		inst := decoder.Decode(word)
		Expect(inst.Pred).To(Equal(insts.PredAlways))
		Expect(inst.PredNegate).To(BeFalse())
	})

	It("should sign-extend negative immediates", func() {
		inst := decoder.Decode(uint64(insts.OpMOV)<<56 | uint64(insts.RegNone)<<40 | 0xFFFFF)
		Expect(inst.SImm()).To(Equal(int32(-1)))
	})

	It("should keep positive immediates unchanged", func() {
		inst := decoder.Decode(uint64(insts.OpMOV)<<56 | uint64(insts.RegNone)<<40 | 42)
		Expect(inst.SImm()).To(Equal(int32(42)))
	})

	It("should mark three-operand instructions", func() {
		inst := decoder.Decode(uint64(insts.OpIMAD) << 56)
		Expect(inst.HasRs3).To(BeTrue())

		inst = decoder.Decode(uint64(insts.OpADD) << 56)
		Expect(inst.HasRs3).To(BeFalse())
	})

	It("should round-trip through Encode", func() {
		in := &insts.Instruction{
			Op:         insts.OpISETP,
			Rd:         3,
			Rs1:        10,
			Rs2:        11,
			Pred:       insts.PredAlways,
			PredNegate: false,
			Imm:        insts.CmpLT,
		}
		out := decoder.Decode(insts.Encode(in))
		Expect(out.Op).To(Equal(in.Op))
		Expect(out.Rd).To(Equal(in.Rd))
		Expect(out.Rs1).To(Equal(in.Rs1))
		Expect(out.Rs2).To(Equal(in.Rs2))
		Expect(out.Imm).To(Equal(in.Imm))
	})
})

var _ = Describe("Instruction", func() {
	It("should classify opcodes by execution resource", func() {
		cases := map[insts.Op]insts.Class{
			insts.OpADD:   insts.ClassALU,
			insts.OpSELP:  insts.ClassALU,
			insts.OpTID:   insts.ClassALU,
			insts.OpFADD:  insts.ClassFPU,
			insts.OpFSETP: insts.ClassFPU,
			insts.OpSIN:   insts.ClassSFU,
			insts.OpLDR:   insts.ClassLSU,
			insts.OpSTS:   insts.ClassLSU,
			insts.OpBRA:   insts.ClassCTRL,
			insts.OpEXIT:  insts.ClassCTRL,
		}
		decoder := insts.NewDecoder()
		for op, class := range cases {
			inst := decoder.Decode(uint64(op) << 56)
			Expect(inst.Class).To(Equal(class), "op %#x", uint8(op))
		}
	})

	It("should report store source registers as base and data", func() {
		inst := &insts.Instruction{Op: insts.OpSTR, Rs1: 4, Rs2: 9}
		Expect(inst.SrcRegs()).To(Equal([]uint8{4, 9}))
	})

	It("should not report a destination for stores and SETP", func() {
		Expect((&insts.Instruction{Op: insts.OpSTR}).WritesRd()).To(BeFalse())
		Expect((&insts.Instruction{Op: insts.OpISETP}).WritesRd()).To(BeFalse())
		Expect((&insts.Instruction{Op: insts.OpISETP}).WritesPred()).To(BeTrue())
	})

	It("should include the SELP selector in ReadsPred", func() {
		inst := &insts.Instruction{Op: insts.OpSELP, Pred: insts.PredAlways, Rs3: 2}
		Expect(inst.ReadsPred()).To(Equal([]uint8{2}))
	})

	It("should skip the immediate sentinel in SrcRegs", func() {
		inst := &insts.Instruction{Op: insts.OpADD, Rs1: 5, Rs2: insts.RegNone}
		Expect(inst.SrcRegs()).To(Equal([]uint8{5}))
	})
})
