package asm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/milosim/asm"
	"github.com/sarchlab/milosim/insts"
)

var _ = Describe("Assembler", func() {
	decoder := insts.NewDecoder()

	one := func(source string) *insts.Instruction {
		code, err := asm.Assemble(source)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(HaveLen(1))
		return decoder.Decode(code[0])
	}

	It("should assemble a three-register instruction", func() {
		inst := one("add r1, r2, r3")
		Expect(inst.Op).To(Equal(insts.OpADD))
		Expect(inst.Rd).To(Equal(uint8(1)))
		Expect(inst.Rs1).To(Equal(uint8(2)))
		Expect(inst.Rs2).To(Equal(uint8(3)))
		Expect(inst.Pred).To(Equal(insts.PredAlways))
	})

	It("should accept upper and mixed case", func() {
		inst := one("ADD R1, r2, R3")
		Expect(inst.Op).To(Equal(insts.OpADD))
	})

	It("should assemble a register-or-immediate operand", func() {
		inst := one("add r1, r2, 7")
		Expect(inst.Rs2).To(Equal(insts.RegNone))
		Expect(inst.Imm).To(Equal(uint32(7)))
	})

	It("should force the immediate form for -I variants", func() {
		inst := one("addi r1, r2, 3")
		Expect(inst.Op).To(Equal(insts.OpADD))
		Expect(inst.Rs2).To(Equal(insts.RegNone))
		Expect(inst.Imm).To(Equal(uint32(3)))
	})

	It("should keep real mnemonics ending in I intact", func() {
		// TID ends in a D; use SSY/mnemonic table indirectly: MOVI is an
		// immediate variant of MOV.
		inst := one("movi r1, 5")
		Expect(inst.Op).To(Equal(insts.OpMOV))
		Expect(inst.Imm).To(Equal(uint32(5)))
	})

	It("should encode negative immediates in 20 bits", func() {
		inst := one("addi r1, r2, -1")
		Expect(inst.Imm).To(Equal(uint32(0xFFFFF)))
		Expect(inst.SImm()).To(Equal(int32(-1)))
	})

	It("should accept hex and #-prefixed immediates", func() {
		Expect(one("movi r1, 0x10").Imm).To(Equal(uint32(16)))
		Expect(one("movi r1, #12").Imm).To(Equal(uint32(12)))
	})

	It("should accept immediates at the edges of the 20-bit field", func() {
		Expect(one("movi r1, 0xFFFFF").Imm).To(Equal(uint32(0xFFFFF)))
		Expect(one("movi r1, -524288").SImm()).To(Equal(int32(-524288)))
	})

	Describe("guards", func() {
		It("should parse a guard prefix", func() {
			inst := one("@p2 add r1, r2, r3")
			Expect(inst.Pred).To(Equal(uint8(2)))
			Expect(inst.PredNegate).To(BeFalse())
		})

		It("should parse a negated guard", func() {
			inst := one("@!p1 add r1, r2, r3")
			Expect(inst.Pred).To(Equal(uint8(1)))
			Expect(inst.PredNegate).To(BeTrue())
		})
	})

	Describe("memory operands", func() {
		It("should assemble a load with an offset", func() {
			inst := one("ldr r2, [r4+64]")
			Expect(inst.Op).To(Equal(insts.OpLDR))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rs1).To(Equal(uint8(4)))
			Expect(inst.SImm()).To(Equal(int32(64)))
		})

		It("should assemble a negative offset", func() {
			inst := one("lds r2, [r4-8]")
			Expect(inst.SImm()).To(Equal(int32(-8)))
		})

		It("should put the store data register in the second source", func() {
			inst := one("str r7, [r4+0]")
			Expect(inst.Rs2).To(Equal(uint8(7)))
			Expect(inst.Rs1).To(Equal(uint8(4)))
		})

		It("should reject a bare address operand", func() {
			_, err := asm.Assemble("ldr r2, r4")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("labels", func() {
		It("should resolve a backward reference", func() {
			code, err := asm.Assemble(`
loop:
    add r1, r1, 1
    bra loop
`)
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(HaveLen(2))
			Expect(decoder.Decode(code[1]).Imm).To(Equal(uint32(0)))
		})

		It("should resolve a forward reference", func() {
			code, err := asm.Assemble(`
    bra done
    nop
done:
    exit
`)
			Expect(err).ToNot(HaveOccurred())
			Expect(decoder.Decode(code[0]).Imm).To(Equal(uint32(2)))
		})

		It("should allow a label on the same line as code", func() {
			code, err := asm.Assemble("start: exit")
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(HaveLen(1))
		})

		It("should accept a numeric branch target", func() {
			Expect(one("bra 5").Imm).To(Equal(uint32(5)))
		})

		It("should reject an undefined label", func() {
			_, err := asm.Assemble("bra nowhere")
			Expect(err).To(MatchError(ContainSubstring("undefined label")))
		})

		It("should reject a duplicate label", func() {
			_, err := asm.Assemble("a:\na:\nexit")
			Expect(err).To(MatchError(ContainSubstring("duplicate label")))
		})
	})

	Describe("predicate forms", func() {
		It("should assemble ISETP", func() {
			inst := one("isetp p0, r1, r2, lt")
			Expect(inst.Op).To(Equal(insts.OpISETP))
			Expect(inst.DstPred()).To(Equal(uint8(0)))
			Expect(inst.Rs1).To(Equal(uint8(1)))
			Expect(inst.Rs2).To(Equal(uint8(2)))
			Expect(inst.Imm).To(Equal(insts.CmpLT))
		})

		It("should assemble SELP with the selector in rs3", func() {
			inst := one("selp r1, r2, r3, p4")
			Expect(inst.Op).To(Equal(insts.OpSELP))
			Expect(inst.Rs3).To(Equal(uint8(4)))
			Expect(inst.HasRs3).To(BeTrue())
		})
	})

	It("should assemble four-register IMAD", func() {
		inst := one("imad r1, r2, r3, r4")
		Expect(inst.Rd).To(Equal(uint8(1)))
		Expect(inst.Rs1).To(Equal(uint8(2)))
		Expect(inst.Rs2).To(Equal(uint8(3)))
		Expect(inst.Rs3).To(Equal(uint8(4)))
	})

	It("should assemble branch compares", func() {
		code, err := asm.Assemble("beq r1, r2, 9")
		Expect(err).ToNot(HaveOccurred())
		inst := decoder.Decode(code[0])
		Expect(inst.Rs1).To(Equal(uint8(1)))
		Expect(inst.Rs2).To(Equal(uint8(2)))
		Expect(inst.Imm).To(Equal(uint32(9)))
	})

	It("should strip comments of both styles", func() {
		code, err := asm.Assemble(`
    nop        ; semicolon comment
    nop        // slash comment
; full-line comment
`)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(HaveLen(2))
	})

	It("should accept BAR with or without a barrier index", func() {
		Expect(one("bar").Op).To(Equal(insts.OpBAR))
		Expect(one("bar 0").Op).To(Equal(insts.OpBAR))
	})

	Describe("errors", func() {
		It("should reject an unknown mnemonic", func() {
			_, err := asm.Assemble("frobnicate r1, r2")
			Expect(err).To(MatchError(ContainSubstring("unknown instruction")))
		})

		It("should reject a bad register", func() {
			_, err := asm.Assemble("add r1, r99, r2")
			Expect(err).To(MatchError(ContainSubstring("bad register")))
		})

		It("should reject a wrong operand count", func() {
			_, err := asm.Assemble("tid r1, r2")
			Expect(err).To(HaveOccurred())
		})

		It("should reject an immediate that overflows 20 bits", func() {
			_, err := asm.Assemble("movi r1, 0x100000")
			Expect(err).To(MatchError(ContainSubstring("does not fit in 20 bits")))

			_, err = asm.Assemble("addi r1, r2, -524289")
			Expect(err).To(MatchError(ContainSubstring("does not fit in 20 bits")))
		})

		It("should reject an oversized memory offset", func() {
			_, err := asm.Assemble("ldr r1, [r2+1048576]")
			Expect(err).To(MatchError(ContainSubstring("does not fit in 20 bits")))
		})

		It("should reject a float whose bit pattern overflows the field", func() {
			_, err := asm.Assemble("movi r1, 1.5")
			Expect(err).To(MatchError(ContainSubstring("does not fit in 20 bits")))
		})

		It("should reject an out-of-range numeric branch target", func() {
			_, err := asm.Assemble("bra 1048576")
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})

		It("should report the offending line number", func() {
			_, err := asm.Assemble("nop\nbogus r1\n")
			Expect(err).To(MatchError(ContainSubstring("line 2")))
		})
	})
})
