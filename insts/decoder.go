package insts

import "fmt"

// Milo832 64-bit instruction format:
//
//	[63:56] opcode
//	[55:48] rd
//	[47:40] rs1
//	[39:32] rs2
//	[31:28] pred   (bit 3: negate, bits 2:0: predicate register, 7 = PT)
//	[27:20] rs3
//	[19:0]  imm20
const (
	opcodeShift = 56
	rdShift     = 48
	rs1Shift    = 40
	rs2Shift    = 32
	predShift   = 28
	rs3Shift    = 20
	immMask     = 0xFFFFF
	predMask    = 0xF
)

// Decoder decodes Milo832 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new Milo832 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 64-bit Milo832 instruction word.
func (d *Decoder) Decode(word uint64) *Instruction {
	op := Op(word >> opcodeShift)
	predField := uint8((word >> predShift) & predMask)

	inst := &Instruction{
		Op:         op,
		Class:      classOf(op),
		Rd:         uint8(word >> rdShift),
		Rs1:        uint8(word >> rs1Shift),
		Rs2:        uint8(word >> rs2Shift),
		Rs3:        uint8((word >> rs3Shift) & 0xFF),
		Pred:       predField & 0x7,
		PredNegate: predField&0x8 != 0,
		Imm:        uint32(word) & immMask,
	}

	switch op {
	case OpIMAD, OpFFMA, OpSELP:
		inst.HasRs3 = true
	}

	return inst
}

// Encode packs an instruction back into its 64-bit word form. The inverse of
// Decode; the assembler and tests build programs through it.
func Encode(inst *Instruction) uint64 {
	pred := uint64(inst.Pred & 0x7)
	if inst.PredNegate {
		pred |= 0x8
	}

	return uint64(inst.Op)<<opcodeShift |
		uint64(inst.Rd)<<rdShift |
		uint64(inst.Rs1)<<rs1Shift |
		uint64(inst.Rs2)<<rs2Shift |
		pred<<predShift |
		uint64(inst.Rs3)<<rs3Shift |
		uint64(inst.Imm&immMask)
}

// String disassembles the instruction.
func (i *Instruction) String() string {
	guard := ""
	if i.Pred != PredAlways {
		neg := ""
		if i.PredNegate {
			neg = "!"
		}
		guard = fmt.Sprintf("@%sP%d ", neg, i.Pred)
	}

	m := i.Op.Mnemonic()

	switch i.Op {
	case OpNOP, OpEXIT, OpJOIN, OpBAR, OpRET:
		return guard + m
	case OpBRA, OpSSY, OpCALL:
		return fmt.Sprintf("%s%s %d", guard, m, i.SImm())
	case OpBEQ, OpBNE:
		return fmt.Sprintf("%s%s R%d, R%d, %d", guard, m, i.Rs1, i.Rs2, i.SImm())
	case OpLDR, OpLDS:
		return fmt.Sprintf("%s%s R%d, [R%d+%d]", guard, m, i.Rd, i.Rs1, i.SImm())
	case OpSTR, OpSTS:
		return fmt.Sprintf("%s%s R%d, [R%d+%d]", guard, m, i.Rs2, i.Rs1, i.SImm())
	case OpTID:
		return fmt.Sprintf("%s%s R%d", guard, m, i.Rd)
	case OpMOV:
		if i.Rs1 == RegNone {
			return fmt.Sprintf("%s%s R%d, #%d", guard, m, i.Rd, i.SImm())
		}
		return fmt.Sprintf("%s%s R%d, R%d", guard, m, i.Rd, i.Rs1)
	case OpISETP, OpFSETP:
		return fmt.Sprintf("%s%s P%d, R%d, R%d, %s",
			guard, m, i.DstPred(), i.Rs1, i.Rs2, cmpName(i.Imm&0x7))
	case OpSELP:
		return fmt.Sprintf("%s%s R%d, R%d, R%d, P%d", guard, m, i.Rd, i.Rs1, i.Rs2, i.Rs3&0x7)
	case OpIMAD, OpFFMA:
		return fmt.Sprintf("%s%s R%d, R%d, R%d, R%d", guard, m, i.Rd, i.Rs1, i.Rs2, i.Rs3)
	}

	// Unary and two-operand register/immediate forms.
	srcs := i.SrcRegs()
	switch len(srcs) {
	case 1:
		if i.Class != ClassSFU && i.Rs2 == RegNone && usesOperandB(i.Op) {
			return fmt.Sprintf("%s%s R%d, R%d, #%d", guard, m, i.Rd, i.Rs1, i.SImm())
		}
		return fmt.Sprintf("%s%s R%d, R%d", guard, m, i.Rd, i.Rs1)
	case 2:
		return fmt.Sprintf("%s%s R%d, R%d, R%d", guard, m, i.Rd, i.Rs1, i.Rs2)
	default:
		return guard + m
	}
}

// usesOperandB reports whether an opcode has a second ALU/FPU operand that
// can come from the immediate field.
func usesOperandB(op Op) bool {
	switch op {
	case OpADD, OpSUB, OpMUL, OpIDIV, OpIREM, OpIMIN, OpIMAX,
		OpSLT, OpSLE, OpSEQ, OpAND, OpOR, OpXOR, OpSHL, OpSHR, OpSHA:
		return true
	default:
		return false
	}
}

func cmpName(sel uint32) string {
	switch sel {
	case CmpLT:
		return "LT"
	case CmpLE:
		return "LE"
	case CmpEQ:
		return "EQ"
	case CmpNE:
		return "NE"
	case CmpGE:
		return "GE"
	case CmpGT:
		return "GT"
	default:
		return "??"
	}
}
