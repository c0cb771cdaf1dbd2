package emu

import (
	"math"

	"github.com/sarchlab/milosim/insts"
)

// FPUnit is the IEEE-754 single-precision functional unit.
//
// Division by zero follows the original Milo832 toolchain: the lane result
// is forced to zero with FlagDivZero raised, instead of producing Inf.
type FPUnit struct{}

// NewFPUnit creates a new floating-point unit.
func NewFPUnit() *FPUnit {
	return &FPUnit{}
}

// Execute computes the per-lane results for an FPU-class request.
func (u *FPUnit) Execute(req FUReq) FURsp {
	rsp := FURsp{Valid: true}
	inst := req.Inst

	for lane := 0; lane < NumLanes; lane++ {
		if req.Mask&(1<<uint(lane)) == 0 {
			continue
		}

		a := math.Float32frombits(req.SrcA[lane])
		b := math.Float32frombits(req.SrcB[lane])

		var out float32
		switch inst.Op {
		case insts.OpFADD:
			out = a + b
		case insts.OpFSUB:
			out = a - b
		case insts.OpFMUL:
			out = a * b
		case insts.OpFDIV:
			if b == 0 {
				rsp.Flags |= FlagDivZero
			} else {
				out = a / b
			}
		case insts.OpFFMA:
			out = a*b + math.Float32frombits(req.SrcC[lane])
		case insts.OpFNEG:
			out = -a
		case insts.OpFABS:
			out = float32(math.Abs(float64(a)))
		case insts.OpFMIN:
			out = float32(math.Min(float64(a), float64(b)))
		case insts.OpFMAX:
			out = float32(math.Max(float64(a), float64(b)))
		case insts.OpFTOI:
			rsp.Result[lane] = uint32(int32(a))
			continue
		case insts.OpITOF:
			out = float32(int32(req.SrcA[lane]))
		case insts.OpFSLT:
			rsp.Result[lane] = boolToLane(a < b)
			continue
		case insts.OpFSLE:
			rsp.Result[lane] = boolToLane(a <= b)
			continue
		case insts.OpFSEQ:
			rsp.Result[lane] = boolToLane(a == b)
			continue
		case insts.OpFSETP:
			if compareFloat(inst.Imm&0x7, a, b) {
				rsp.PredBits |= 1 << uint(lane)
			}
			continue
		default:
			rsp.Valid = false
			return rsp
		}

		if out != out { // NaN
			rsp.Flags |= FlagInvalid
		}
		rsp.Result[lane] = math.Float32bits(out)
	}

	return rsp
}

// compareFloat evaluates an FSETP comparison selector. All comparisons are
// unordered-false: a NaN operand fails every selector.
func compareFloat(sel uint32, a, b float32) bool {
	switch sel {
	case insts.CmpLT:
		return a < b
	case insts.CmpLE:
		return a <= b
	case insts.CmpEQ:
		return a == b
	case insts.CmpNE:
		return a != b
	case insts.CmpGE:
		return a >= b
	case insts.CmpGT:
		return a > b
	default:
		return false
	}
}
