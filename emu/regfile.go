// Package emu provides the architectural storage and the functional
// collaborators of the Milo832 SM core: the banked vector register file, the
// predicate file, the per-lane functional units, and the global memory model.
package emu

// SM core geometry. These values are fixed for the Milo832 model.
const (
	// NumLanes is the SIMT width of a warp.
	NumLanes = 32

	// NumRegs is the number of architectural registers per lane.
	NumRegs = 64

	// NumRegBanks is the number of register file banks. Registers map to
	// banks by index modulo NumRegBanks.
	NumRegBanks = 4

	// NumPredRegs is the number of architectural predicate registers.
	// Index 7 is PT, the hardwired always-true predicate.
	NumPredRegs = 7
)

// FullMask is the active mask with all 32 lanes enabled.
const FullMask uint32 = 0xFFFFFFFF

// Vector is one register's worth of per-lane values.
type Vector [NumLanes]uint32

// RegFile is the banked vector register file: NumRegs registers of NumLanes
// 32-bit values for each resident warp. Register 0 is hardwired to zero.
//
// Banking is purely a port-arbitration concern: Bank tells the operand
// collector which bank a register read occupies; the storage itself is flat.
type RegFile struct {
	regs [][NumRegs]Vector
}

// NewRegFile creates a register file for the given number of resident warps.
func NewRegFile(numWarps int) *RegFile {
	return &RegFile{
		regs: make([][NumRegs]Vector, numWarps),
	}
}

// Bank returns the bank a register index maps to.
func Bank(reg uint8) int {
	return int(reg) % NumRegBanks
}

// Read returns the vector value of a register. Register 0 and out-of-range
// indices (including the 0xFF immediate sentinel) read as zero.
func (r *RegFile) Read(warp int, reg uint8) Vector {
	if reg == 0 || reg >= NumRegs {
		return Vector{}
	}
	return r.regs[warp][reg]
}

// Write commits per-lane values to a register for the lanes in mask.
// Writes to register 0 and out-of-range indices are ignored.
func (r *RegFile) Write(warp int, reg uint8, value Vector, mask uint32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	for lane := 0; lane < NumLanes; lane++ {
		if mask&(1<<uint(lane)) != 0 {
			r.regs[warp][reg][lane] = value[lane]
		}
	}
}

// PredFile holds the per-warp predicate registers, one 32-bit lane mask per
// predicate. Reads of PT (index 7) return all lanes true.
type PredFile struct {
	preds [][NumPredRegs]uint32
}

// NewPredFile creates a predicate file for the given number of warps.
func NewPredFile(numWarps int) *PredFile {
	return &PredFile{
		preds: make([][NumPredRegs]uint32, numWarps),
	}
}

// Read returns the lane bits of a predicate register.
func (p *PredFile) Read(warp int, pred uint8) uint32 {
	if pred >= NumPredRegs {
		return FullMask // PT
	}
	return p.preds[warp][pred]
}

// Write sets the lane bits of a predicate register for the lanes in mask.
// Writes to PT are ignored.
func (p *PredFile) Write(warp int, pred uint8, bits uint32, mask uint32) {
	if pred >= NumPredRegs {
		return
	}
	p.preds[warp][pred] = (p.preds[warp][pred] &^ mask) | (bits & mask)
}
