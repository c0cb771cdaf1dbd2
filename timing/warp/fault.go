package warp

import "fmt"

// FaultKind classifies the fatal simulation faults a warp can raise. Stalls,
// squashes, and resource exhaustion all resolve inside the core; only stack
// faults surface to the caller.
type FaultKind int

// Fault kinds.
const (
	FaultDivOverflow FaultKind = iota
	FaultDivUnderflow
	FaultRetOverflow
	FaultRetUnderflow
)

// String returns the fault name.
func (k FaultKind) String() string {
	switch k {
	case FaultDivOverflow:
		return "divergence stack overflow"
	case FaultDivUnderflow:
		return "divergence stack underflow"
	case FaultRetOverflow:
		return "return stack overflow"
	case FaultRetUnderflow:
		return "return stack underflow"
	default:
		return "unknown fault"
	}
}

// Fault is a fatal, reportable simulation error referencing the offending
// warp and PC.
type Fault struct {
	// Warp is the offending warp slot.
	Warp int

	// PC is the instruction index that raised the fault.
	PC uint64

	// Kind classifies the fault.
	Kind FaultKind
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("warp %d: %s at PC %d", f.Warp, f.Kind, f.PC)
}
