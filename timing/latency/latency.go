// Package latency provides instruction timing models for the cycle-level SM
// simulation. Functional-unit latencies are fixed per opcode class and can be
// configured via TimingConfig.
package latency

import "github.com/sarchlab/milosim/insts"

// Table provides latency lookups per instruction.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with a custom configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Global memory latency is not included here; it is modeled by
// the memory collaborator behind the MSHR.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassALU:
		return t.config.ALULatency
	case insts.ClassFPU:
		if inst.Op == insts.OpFDIV {
			return t.config.FDivLatency
		}
		return t.config.FPULatency
	case insts.ClassSFU:
		return t.config.SFULatency
	case insts.ClassLSU:
		if inst.IsShared() {
			return t.config.SharedLatency
		}
		return 1 // issue cost only; the MSHR tracks the rest
	case insts.ClassCTRL:
		return t.config.BranchLatency
	default:
		return 1
	}
}

// MemoryLatency returns the configured global-memory round-trip latency.
func (t *Table) MemoryLatency() uint64 {
	return t.config.MemoryLatency
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
