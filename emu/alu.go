package emu

import (
	"math/bits"

	"github.com/sarchlab/milosim/insts"
)

// IntUnit is the integer functional unit. It executes ALU-class opcodes one
// warp request at a time, lane by lane.
type IntUnit struct{}

// NewIntUnit creates a new integer unit.
func NewIntUnit() *IntUnit {
	return &IntUnit{}
}

// Execute computes the per-lane results for an ALU-class request.
func (u *IntUnit) Execute(req FUReq) FURsp {
	rsp := FURsp{Valid: true}
	inst := req.Inst

	for lane := 0; lane < NumLanes; lane++ {
		if req.Mask&(1<<uint(lane)) == 0 {
			continue
		}

		a := int32(req.SrcA[lane])
		b := int32(req.SrcB[lane])
		ua := req.SrcA[lane]
		ub := req.SrcB[lane]

		var out uint32
		switch inst.Op {
		case insts.OpNOP:
			// Shadowed or explicit NOP: nothing to compute.
		case insts.OpMOV:
			out = ua
		case insts.OpADD:
			out = uint32(a + b)
		case insts.OpSUB:
			out = uint32(a - b)
		case insts.OpMUL:
			out = uint32(a * b)
		case insts.OpIMAD:
			out = uint32(a*b + int32(req.SrcC[lane]))
		case insts.OpNEG:
			out = uint32(-a)
		case insts.OpIDIV:
			if b == 0 {
				rsp.Flags |= FlagDivZero
			} else {
				out = uint32(a / b)
			}
		case insts.OpIREM:
			if b == 0 {
				rsp.Flags |= FlagDivZero
			} else {
				out = uint32(a % b)
			}
		case insts.OpIABS:
			if a < 0 {
				out = uint32(-a)
			} else {
				out = uint32(a)
			}
		case insts.OpIMIN:
			out = uint32(min(a, b))
		case insts.OpIMAX:
			out = uint32(max(a, b))
		case insts.OpSLT:
			out = boolToLane(a < b)
		case insts.OpSLE:
			out = boolToLane(a <= b)
		case insts.OpSEQ:
			out = boolToLane(a == b)
		case insts.OpAND:
			out = ua & ub
		case insts.OpOR:
			out = ua | ub
		case insts.OpXOR:
			out = ua ^ ub
		case insts.OpNOT:
			out = ^ua
		case insts.OpSHL:
			out = ua << (ub & 31)
		case insts.OpSHR:
			out = ua >> (ub & 31)
		case insts.OpSHA:
			out = uint32(a >> (ub & 31))
		case insts.OpPOPC:
			out = uint32(bits.OnesCount32(ua))
		case insts.OpCLZ:
			out = uint32(bits.LeadingZeros32(ua))
		case insts.OpBREV:
			out = bits.Reverse32(ua)
		case insts.OpCNOT:
			out = boolToLane(ua == 0)
		case insts.OpSELP:
			if req.SelPred&(1<<uint(lane)) != 0 {
				out = ua
			} else {
				out = ub
			}
		case insts.OpTID:
			out = uint32(req.WarpID*NumLanes + lane)
		case insts.OpISETP:
			if compareInt(inst.Imm&0x7, a, b) {
				rsp.PredBits |= 1 << uint(lane)
			}
			continue
		default:
			rsp.Valid = false
			return rsp
		}

		rsp.Result[lane] = out
	}

	return rsp
}

// compareInt evaluates an ISETP comparison selector.
func compareInt(sel uint32, a, b int32) bool {
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

func boolToLane(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
