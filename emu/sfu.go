package emu

import (
	"math"

	"github.com/sarchlab/milosim/insts"
)

// SpecialUnit is the special-function unit: transcendentals and reciprocal
// approximations. The model computes exact results; the hardware's reduced
// precision is outside the scope of the timing model.
type SpecialUnit struct{}

// NewSpecialUnit creates a new special-function unit.
func NewSpecialUnit() *SpecialUnit {
	return &SpecialUnit{}
}

// Execute computes the per-lane results for an SFU-class request.
func (u *SpecialUnit) Execute(req FUReq) FURsp {
	rsp := FURsp{Valid: true}

	for lane := 0; lane < NumLanes; lane++ {
		if req.Mask&(1<<uint(lane)) == 0 {
			continue
		}

		a := float64(math.Float32frombits(req.SrcA[lane]))

		var out float64
		switch req.Inst.Op {
		case insts.OpSIN:
			out = math.Sin(a)
		case insts.OpCOS:
			out = math.Cos(a)
		case insts.OpEX2:
			out = math.Exp2(a)
		case insts.OpLG2:
			out = math.Log2(a)
		case insts.OpRCP:
			if a == 0 {
				rsp.Flags |= FlagDivZero
			} else {
				out = 1 / a
			}
		case insts.OpRSQ:
			if a <= 0 {
				rsp.Flags |= FlagDivZero
			} else {
				out = 1 / math.Sqrt(a)
			}
		case insts.OpSQRT:
			out = math.Sqrt(a)
		case insts.OpTANH:
			out = math.Tanh(a)
		default:
			rsp.Valid = false
			return rsp
		}

		f := float32(out)
		if f != f {
			rsp.Flags |= FlagInvalid
		}
		rsp.Result[lane] = math.Float32bits(f)
	}

	return rsp
}
