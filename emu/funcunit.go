package emu

import "github.com/sarchlab/milosim/insts"

// Flags carries per-request exception information out of a functional unit.
type Flags uint32

// Exception flags.
const (
	// FlagDivZero is raised when any active lane divides by zero. The
	// lane result is forced to zero.
	FlagDivZero Flags = 1 << iota

	// FlagInvalid is raised for NaN-producing float operations.
	FlagInvalid
)

// FUReq is a functional-unit request: an opcode, collected operand values,
// and the active mask. Lanes outside the mask produce undefined results and
// must not be committed.
type FUReq struct {
	// Inst is the decoded instruction to execute.
	Inst *insts.Instruction

	// SrcA, SrcB, SrcC are the collected operand vectors (register values
	// or broadcast immediates).
	SrcA Vector
	SrcB Vector
	SrcC Vector

	// SelPred is the selector predicate lane bits for SELP.
	SelPred uint32

	// Mask is the active-lane mask.
	Mask uint32

	// WarpID identifies the requesting warp; TID derives the global
	// thread index from it.
	WarpID int
}

// FURsp is a functional-unit response: per-lane results, exception flags,
// and for SETP operations the produced predicate lane bits.
type FURsp struct {
	// Result holds the per-lane results.
	Result Vector

	// PredBits holds the produced predicate bits for ISETP/FSETP.
	PredBits uint32

	// Flags carries exception information.
	Flags Flags

	// Valid indicates the opcode was recognized by this unit.
	Valid bool
}

// FuncUnit is the interface the core dispatches execution requests through.
// Implementations are pure transforms; all timing lives in the core's
// dispatch pipelines.
type FuncUnit interface {
	Execute(req FUReq) FURsp
}
