// Package main provides the MiloSim command line interface: it assembles a
// Milo832 kernel, runs it on the cycle-level SM core model, and reports
// execution statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/milosim/asm"
	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/cache"
	"github.com/sarchlab/milosim/timing/core"
	"github.com/sarchlab/milosim/timing/latency"
)

var (
	numWarps   = flag.Int("warps", 1, "Number of warps to launch")
	maxCycles  = flag.Uint64("cycles", 10_000_000, "Cycle budget before giving up")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	memSize    = flag.Uint64("mem", 1<<20, "Global memory capacity in bytes")
	useL1      = flag.Bool("l1", false, "Enable the L1 data-cache timing model")
	disasm     = flag.Bool("disasm", false, "Print the assembled program and exit")
	dumpWords  = flag.Int("dump", 0, "Dump the first N global-memory words after the run")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: milosim [options] <kernel.milo>\n\nOptions:\n")
		flag.PrintDefaults()
		atexit.Exit(1)
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fail("reading kernel: %v", err)
	}

	words, err := asm.Assemble(string(source))
	if err != nil {
		fail("assembling kernel: %v", err)
	}

	if *disasm {
		printDisasm(words)
		atexit.Exit(0)
	}

	opts := []core.CoreOption{}
	if *configPath != "" {
		cfg, err := latency.LoadConfig(*configPath)
		if err != nil {
			fail("loading timing config: %v", err)
		}
		opts = append(opts, core.WithTimingConfig(cfg))
	}
	if *useL1 {
		opts = append(opts, core.WithL1(cache.DefaultL1Config()))
	}

	memory := emu.NewGlobalMemory(*memSize)
	c := core.NewCore(memory, opts...)
	c.LoadProgram(words)
	c.Launch(*numWarps)

	runID := xid.New()
	if *verbose {
		fmt.Printf("run %s: %d instructions, %d warps\n", runID, len(words), *numWarps)
	}

	done, err := c.Run(*maxCycles)
	if err != nil {
		fail("simulation fault: %v", err)
	}
	if !done {
		fail("cycle budget exhausted after %d cycles", *maxCycles)
	}

	report(c)

	if *dumpWords > 0 {
		dump(memory, *dumpWords)
	}

	atexit.Exit(0)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "milosim: %s\n", fmt.Sprintf(format, args...))
	atexit.Exit(1)
}

func printDisasm(words []uint64) {
	decoder := insts.NewDecoder()
	for i, w := range words {
		fmt.Printf("%04X: %016X  %s\n", i, w, decoder.Decode(w))
	}
}

// report prints the end-of-run statistics.
func report(c *core.Core) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgWhite)

	stats := c.Stats()
	header.Println("== Execution ==")
	label.Printf("  cycles:            %d\n", stats.Cycles)
	label.Printf("  instructions:      %d\n", stats.Instructions)
	label.Printf("  issued:            %d\n", stats.Issued)
	label.Printf("  IPC:               %.3f\n", ipc(stats))
	label.Printf("  dual-issue cycles: %d\n", stats.DualIssueCycles)
	label.Printf("  squashes:          %d\n", stats.Squashes)

	header.Println("== Stalls ==")
	label.Printf("  scoreboard:        %d\n", stats.ScoreboardStalls)
	label.Printf("  collector:         %d\n", stats.CollectorStalls)
	label.Printf("  transaction IDs:   %d\n", stats.TransIDStalls)
	label.Printf("  idle cycles:       %d\n", stats.IdleCycles)

	lsuStats := c.LSU().Stats()
	header.Println("== Memory ==")
	label.Printf("  global loads:      %d\n", lsuStats.GlobalLoads)
	label.Printf("  global stores:     %d\n", lsuStats.GlobalStores)
	label.Printf("  line groups:       %d\n", lsuStats.LineGroups)
	label.Printf("  replays:           %d\n", lsuStats.Replays)
	label.Printf("  shared loads:      %d\n", lsuStats.SharedLoads)
	label.Printf("  shared stores:     %d\n", lsuStats.SharedStores)

	if l1 := c.L1(); l1 != nil {
		cs := l1.Stats()
		header.Println("== L1 ==")
		label.Printf("  accesses:          %d\n", cs.Reads+cs.Writes)
		label.Printf("  hits:              %d\n", cs.Hits)
		label.Printf("  misses:            %d\n", cs.Misses)
	}

	if flags := c.Flags(); flags != 0 {
		warn := color.New(color.FgYellow, color.Bold)
		warn.Printf("== Flags == %#x\n", uint32(flags))
	}
}

func ipc(stats core.Stats) float64 {
	if stats.Cycles == 0 {
		return 0
	}
	return float64(stats.Instructions) / float64(stats.Cycles)
}

func dump(memory *emu.GlobalMemory, n int) {
	header := color.New(color.FgCyan, color.Bold)
	header.Println("== Memory ==")
	for i := 0; i < n; i++ {
		fmt.Printf("  [%04X] %d\n", i*4, memory.Read32(uint64(i*4)))
	}
}
