// Package insts provides Milo832 instruction definitions and decoding.
//
// This package implements decoding of the fixed-width 64-bit Milo832
// instruction format into structured instruction representations. Opcodes
// split into five classes that dispatch to different execution resources:
//   - ALU: integer arithmetic, logic, shifts, bit manipulation, predicates
//   - FPU: IEEE-754 arithmetic, conversion, and comparison
//   - SFU: special functions (SIN, COS, EX2, LG2, RCP, RSQ, SQRT, TANH)
//   - LSU: global (LDR/STR) and shared (LDS/STS) memory accesses
//   - CTRL: branches, divergence (SSY/JOIN), barriers, CALL/RET, EXIT
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x0102030700000000) // ADD R2, R3, R7
package insts

// Op represents a Milo832 opcode byte.
type Op uint8

// Milo832 opcodes.
const (
	// Control / no operation
	OpNOP  Op = 0x00
	OpMOV  Op = 0x07
	OpEXIT Op = 0xFF

	// Integer arithmetic
	OpADD  Op = 0x01
	OpSUB  Op = 0x02
	OpMUL  Op = 0x03
	OpIMAD Op = 0x05
	OpNEG  Op = 0x06
	OpIDIV Op = 0x36
	OpIREM Op = 0x37
	OpIABS Op = 0x38
	OpIMIN Op = 0x39
	OpIMAX Op = 0x3A

	// Integer comparison
	OpSLT Op = 0x04
	OpSLE Op = 0x70
	OpSEQ Op = 0x71

	// Logic
	OpAND Op = 0x50
	OpOR  Op = 0x51
	OpXOR Op = 0x52
	OpNOT Op = 0x53

	// Shifts
	OpSHL Op = 0x60
	OpSHR Op = 0x61
	OpSHA Op = 0x62

	// Memory
	OpLDR Op = 0x10
	OpSTR Op = 0x11
	OpLDS Op = 0x12
	OpSTS Op = 0x13

	// Control flow
	OpBEQ  Op = 0x20
	OpBNE  Op = 0x21
	OpBRA  Op = 0x22
	OpSSY  Op = 0x23
	OpJOIN Op = 0x24
	OpBAR  Op = 0x25
	OpTID  Op = 0x26
	OpCALL Op = 0x27
	OpRET  Op = 0x28

	// Floating point
	OpFADD Op = 0x30
	OpFSUB Op = 0x31
	OpFMUL Op = 0x32
	OpFDIV Op = 0x33
	OpFTOI Op = 0x34
	OpFFMA Op = 0x35
	OpFMIN Op = 0x3B
	OpFMAX Op = 0x3C
	OpFABS Op = 0x3D
	OpITOF Op = 0x3E
	OpFNEG Op = 0x54

	// Floating point comparison
	OpFSLT Op = 0x72
	OpFSLE Op = 0x73
	OpFSEQ Op = 0x74

	// Bit manipulation
	OpPOPC Op = 0x68
	OpCLZ  Op = 0x69
	OpBREV Op = 0x6A
	OpCNOT Op = 0x6B

	// Predicate operations
	OpISETP Op = 0x80
	OpFSETP Op = 0x81
	OpSELP  Op = 0x82

	// Special function unit
	OpSIN  Op = 0x40
	OpCOS  Op = 0x41
	OpEX2  Op = 0x42
	OpLG2  Op = 0x43
	OpRCP  Op = 0x44
	OpRSQ  Op = 0x45
	OpSQRT Op = 0x46
	OpTANH Op = 0x47
)

// Class represents the execution resource an opcode dispatches to.
type Class uint8

// Opcode classes.
const (
	ClassUnknown Class = iota
	ClassALU
	ClassFPU
	ClassSFU
	ClassLSU
	ClassCTRL
)

// String returns the class mnemonic.
func (c Class) String() string {
	switch c {
	case ClassALU:
		return "ALU"
	case ClassFPU:
		return "FPU"
	case ClassSFU:
		return "SFU"
	case ClassLSU:
		return "LSU"
	case ClassCTRL:
		return "CTRL"
	default:
		return "UNK"
	}
}

// RegNone is the sentinel register index meaning "operand comes from the
// immediate field instead of a register".
const RegNone uint8 = 0xFF

// PredAlways is the always-true predicate PT. Predicate registers 0-6 are
// architectural; index 7 reads as all-lanes-true.
const PredAlways uint8 = 7

// Comparison selectors for ISETP/FSETP, carried in the low immediate bits.
const (
	CmpLT uint32 = 0
	CmpLE uint32 = 1
	CmpEQ uint32 = 2
	CmpNE uint32 = 3
	CmpGE uint32 = 4
	CmpGT uint32 = 5
)

// Instruction represents a decoded Milo832 instruction.
type Instruction struct {
	// Op is the opcode byte.
	Op Op

	// Class is the execution resource class derived from Op.
	Class Class

	// Rd is the destination register (or source data register for stores,
	// or destination predicate index for ISETP/FSETP).
	Rd uint8

	// Rs1 and Rs2 are the source registers. Rs2 == RegNone selects the
	// immediate as the second operand.
	Rs1 uint8
	Rs2 uint8

	// Rs3 is the third source register (IMAD, FFMA) or the selector
	// predicate for SELP.
	Rs3 uint8

	// HasRs3 reports whether Rs3 carries a live operand.
	HasRs3 bool

	// Pred is the guard predicate register index; PredAlways means the
	// instruction is unguarded.
	Pred uint8

	// PredNegate inverts the guard predicate.
	PredNegate bool

	// Imm is the raw 20-bit immediate field.
	Imm uint32
}

// SImm returns the immediate sign-extended from 20 bits. Branch targets,
// memory offsets, and MOV immediates use this form.
func (i *Instruction) SImm() int32 {
	v := int32(i.Imm & 0xFFFFF)
	if v&0x80000 != 0 {
		v |= ^int32(0xFFFFF)
	}
	return v
}

// WritesRd reports whether the instruction writes a general register.
func (i *Instruction) WritesRd() bool {
	switch i.Op {
	case OpNOP, OpEXIT, OpSTR, OpSTS,
		OpBEQ, OpBNE, OpBRA, OpSSY, OpJOIN, OpBAR, OpCALL, OpRET,
		OpISETP, OpFSETP:
		return false
	default:
		return i.Class != ClassUnknown
	}
}

// WritesPred reports whether the instruction writes a predicate register.
// For ISETP/FSETP the destination predicate index is Rd & 0x7.
func (i *Instruction) WritesPred() bool {
	return i.Op == OpISETP || i.Op == OpFSETP
}

// DstPred returns the destination predicate index for SETP operations.
func (i *Instruction) DstPred() uint8 {
	return i.Rd & 0x7
}

// IsLoad reports whether the instruction reads memory.
func (i *Instruction) IsLoad() bool {
	return i.Op == OpLDR || i.Op == OpLDS
}

// IsStore reports whether the instruction writes memory.
func (i *Instruction) IsStore() bool {
	return i.Op == OpSTR || i.Op == OpSTS
}

// IsShared reports whether the instruction accesses shared memory.
func (i *Instruction) IsShared() bool {
	return i.Op == OpLDS || i.Op == OpSTS
}

// SrcRegs returns the general registers the instruction reads. Stores read
// their base address from Rs1 and their data operand from Rs2.
func (i *Instruction) SrcRegs() []uint8 {
	var srcs []uint8

	add := func(r uint8) {
		if r == RegNone {
			return
		}
		srcs = append(srcs, r)
	}

	switch i.Op {
	case OpNOP, OpEXIT, OpBRA, OpSSY, OpJOIN, OpBAR, OpCALL, OpRET, OpTID:
		return nil
	case OpSTR, OpSTS:
		add(i.Rs1)
		add(i.Rs2)
	case OpLDR, OpLDS:
		add(i.Rs1)
	case OpMOV, OpNEG, OpNOT, OpIABS, OpPOPC, OpCLZ, OpBREV, OpCNOT,
		OpFABS, OpFNEG, OpFTOI, OpITOF,
		OpSIN, OpCOS, OpEX2, OpLG2, OpRCP, OpRSQ, OpSQRT, OpTANH:
		add(i.Rs1)
	case OpIMAD, OpFFMA:
		add(i.Rs1)
		add(i.Rs2)
		add(i.Rs3)
	case OpSELP:
		add(i.Rs1)
		add(i.Rs2)
	default:
		// Two-operand arithmetic, logic, shifts, comparisons, and
		// conditional branches.
		add(i.Rs1)
		add(i.Rs2)
	}

	return srcs
}

// ReadsPred returns the predicate registers the instruction reads: the guard
// plus, for SELP, the selector predicate in Rs3.
func (i *Instruction) ReadsPred() []uint8 {
	var preds []uint8
	if i.Pred != PredAlways {
		preds = append(preds, i.Pred&0x7)
	}
	if i.Op == OpSELP {
		preds = append(preds, i.Rs3&0x7)
	}
	return preds
}

// classOf maps an opcode to its execution class.
func classOf(op Op) Class {
	switch op {
	case OpNOP, OpMOV, OpADD, OpSUB, OpMUL, OpIMAD, OpNEG,
		OpIDIV, OpIREM, OpIABS, OpIMIN, OpIMAX,
		OpSLT, OpSLE, OpSEQ,
		OpAND, OpOR, OpXOR, OpNOT,
		OpSHL, OpSHR, OpSHA,
		OpPOPC, OpCLZ, OpBREV, OpCNOT,
		OpISETP, OpSELP, OpTID:
		return ClassALU
	case OpFADD, OpFSUB, OpFMUL, OpFDIV, OpFTOI, OpFFMA,
		OpFMIN, OpFMAX, OpFABS, OpITOF, OpFNEG,
		OpFSLT, OpFSLE, OpFSEQ, OpFSETP:
		return ClassFPU
	case OpSIN, OpCOS, OpEX2, OpLG2, OpRCP, OpRSQ, OpSQRT, OpTANH:
		return ClassSFU
	case OpLDR, OpSTR, OpLDS, OpSTS:
		return ClassLSU
	case OpBEQ, OpBNE, OpBRA, OpSSY, OpJOIN, OpBAR, OpCALL, OpRET, OpEXIT:
		return ClassCTRL
	default:
		return ClassUnknown
	}
}

// mnemonics maps opcodes to their assembly mnemonics.
var mnemonics = map[Op]string{
	OpNOP: "NOP", OpMOV: "MOV", OpEXIT: "EXIT",
	OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpIMAD: "IMAD", OpNEG: "NEG",
	OpIDIV: "IDIV", OpIREM: "IREM", OpIABS: "IABS", OpIMIN: "IMIN", OpIMAX: "IMAX",
	OpSLT: "SLT", OpSLE: "SLE", OpSEQ: "SEQ",
	OpAND: "AND", OpOR: "OR", OpXOR: "XOR", OpNOT: "NOT",
	OpSHL: "SHL", OpSHR: "SHR", OpSHA: "SHA",
	OpLDR: "LDR", OpSTR: "STR", OpLDS: "LDS", OpSTS: "STS",
	OpBEQ: "BEQ", OpBNE: "BNE", OpBRA: "BRA", OpSSY: "SSY", OpJOIN: "JOIN",
	OpBAR: "BAR", OpTID: "TID", OpCALL: "CALL", OpRET: "RET",
	OpFADD: "FADD", OpFSUB: "FSUB", OpFMUL: "FMUL", OpFDIV: "FDIV",
	OpFTOI: "FTOI", OpFFMA: "FFMA", OpFMIN: "FMIN", OpFMAX: "FMAX",
	OpFABS: "FABS", OpITOF: "ITOF", OpFNEG: "FNEG",
	OpFSLT: "FSLT", OpFSLE: "FSLE", OpFSEQ: "FSEQ",
	OpPOPC: "POPC", OpCLZ: "CLZ", OpBREV: "BREV", OpCNOT: "CNOT",
	OpISETP: "ISETP", OpFSETP: "FSETP", OpSELP: "SELP",
	OpSIN: "SIN", OpCOS: "COS", OpEX2: "EX2", OpLG2: "LG2",
	OpRCP: "RCP", OpRSQ: "RSQ", OpSQRT: "SQRT", OpTANH: "TANH",
}

// Mnemonic returns the assembly mnemonic for the opcode.
func (o Op) Mnemonic() string {
	if m, ok := mnemonics[o]; ok {
		return m
	}
	return "???"
}

// opsByMnemonic is the reverse of mnemonics, built once for the assembler.
var opsByMnemonic = func() map[string]Op {
	m := make(map[string]Op, len(mnemonics))
	for op, name := range mnemonics {
		m[name] = op
	}
	return m
}()

// OpByMnemonic looks up an opcode by its assembly mnemonic.
func OpByMnemonic(name string) (Op, bool) {
	op, ok := opsByMnemonic[name]
	return op, ok
}
