// Package benchmarks provides Milo832 kernels and a harness for exercising
// the SM core model end to end, from assembly source through retirement.
package benchmarks

import (
	"fmt"

	"github.com/sarchlab/milosim/asm"
	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/timing/core"
)

// Benchmark describes one kernel run.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the kernel exercises.
	Description string

	// Source is the Milo832 assembly text.
	Source string

	// Warps is the number of warps to launch.
	Warps int

	// MaxCycles is the cycle budget; zero means the default.
	MaxCycles uint64

	// Setup seeds global memory before the run.
	Setup func(mem *emu.GlobalMemory)

	// Check validates memory and core state after the run.
	Check func(mem *emu.GlobalMemory, c *core.Core) error
}

// Result holds the timing outcome of a benchmark run.
type Result struct {
	Name         string
	Cycles       uint64
	Instructions uint64
	IPC          float64
	Stats        core.Stats
}

// DefaultMaxCycles bounds a run when the benchmark does not set a budget.
const DefaultMaxCycles = 1_000_000

// Run assembles, executes, and checks one benchmark.
func Run(b Benchmark, opts ...core.CoreOption) (Result, error) {
	words, err := asm.Assemble(b.Source)
	if err != nil {
		return Result{}, fmt.Errorf("%s: assemble: %w", b.Name, err)
	}

	mem := emu.NewGlobalMemory(1 << 20)
	if b.Setup != nil {
		b.Setup(mem)
	}

	c := core.NewCore(mem, opts...)
	c.LoadProgram(words)
	c.Launch(b.Warps)

	budget := b.MaxCycles
	if budget == 0 {
		budget = DefaultMaxCycles
	}

	done, err := c.Run(budget)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", b.Name, err)
	}
	if !done {
		return Result{}, fmt.Errorf("%s: did not finish within %d cycles", b.Name, budget)
	}

	if b.Check != nil {
		if err := b.Check(mem, c); err != nil {
			return Result{}, fmt.Errorf("%s: %w", b.Name, err)
		}
	}

	stats := c.Stats()
	r := Result{
		Name:         b.Name,
		Cycles:       stats.Cycles,
		Instructions: stats.Instructions,
		Stats:        stats,
	}
	if stats.Cycles > 0 {
		r.IPC = float64(stats.Instructions) / float64(stats.Cycles)
	}
	return r, nil
}
