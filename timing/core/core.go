// Package core provides the cycle-level SM core model: 24 resident warps
// over a 32-lane datapath, scheduled greedy-then-round-robin into a
// dual-issue pipeline with scoreboarding, operand collection, per-class
// execution ports, and out-of-order writeback.
package core

import (
	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/cache"
	"github.com/sarchlab/milosim/timing/latency"
	"github.com/sarchlab/milosim/timing/lsu"
	"github.com/sarchlab/milosim/timing/pipeline"
	"github.com/sarchlab/milosim/timing/warp"
)

// NumWarps is the number of resident warp slots per SM.
const NumWarps = 24

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64

	// Instructions is the number of instructions retired.
	Instructions uint64

	// Issued is the number of instructions issued, including wrong-path
	// ones later squashed.
	Issued uint64

	// DualIssueCycles is the number of cycles a two-instruction group
	// issued.
	DualIssueCycles uint64

	// ScoreboardStalls and TransIDStalls count cycles the selected warp
	// could not issue, by cause.
	ScoreboardStalls uint64
	TransIDStalls    uint64

	// CollectorStalls counts ready warps passed over by the scheduler for
	// lack of a free collector unit.
	CollectorStalls uint64

	// IdleCycles is the number of cycles with no eligible warp.
	IdleCycles uint64

	// Squashes is the number of wrong-path instructions filtered at
	// dispatch.
	Squashes uint64
}

// CoreOption is a functional option for configuring the Core.
type CoreOption func(*Core)

// WithSMID sets the SM identifier baked into transaction IDs.
func WithSMID(id uint8) CoreOption {
	return func(c *Core) {
		c.smID = id
	}
}

// WithNumWarps overrides the number of resident warp slots.
func WithNumWarps(n int) CoreOption {
	return func(c *Core) {
		c.numWarps = n
	}
}

// WithTimingConfig replaces the default latency configuration.
func WithTimingConfig(cfg *latency.TimingConfig) CoreOption {
	return func(c *Core) {
		c.lat = latency.NewTableWithConfig(cfg)
	}
}

// WithL1 enables the L1 data-cache timing model for global accesses.
func WithL1(cfg cache.Config) CoreOption {
	return func(c *Core) {
		c.l1 = cache.NewL1(cfg)
	}
}

// Core is the SM core model. All per-cycle state transitions happen in Tick;
// stages evaluate in reverse pipeline order so each stage observes the
// previous cycle's outputs.
type Core struct {
	smID     uint8
	numWarps int

	program []*insts.Instruction
	decoder *insts.Decoder

	warps    []*warp.Warp
	regFile  *emu.RegFile
	predFile *emu.PredFile

	sb        *pipeline.Scoreboard
	sched     *pipeline.Scheduler
	issue     *pipeline.IssueUnit
	collector *pipeline.Collector
	barrier   *pipeline.BarrierUnit
	wb        *pipeline.WritebackArbiter

	alu emu.FuncUnit
	fpu emu.FuncUnit
	sfu emu.FuncUnit
	mem *emu.GlobalMemory
	ldu *lsu.LSU
	l1  *cache.L1
	lat *latency.Table

	// pendingCtrl counts in-flight control instructions per warp; a warp
	// whose speculative PC ran past the program end only exits once the
	// count drains to zero.
	pendingCtrl []int

	// directRetired counts instructions that retire at dispatch (stores
	// and control flow) rather than through the writeback arbiter.
	directRetired uint64

	// issueSeq numbers issued instructions so dispatch can drain each
	// warp's collector units in program order.
	issueSeq uint64

	cycle uint64
	flags emu.Flags
	fault error
	stats Stats
}

// NewCore creates an SM core over the given global memory.
func NewCore(memory *emu.GlobalMemory, opts ...CoreOption) *Core {
	c := &Core{
		numWarps: NumWarps,
		decoder:  insts.NewDecoder(),
		mem:      memory,
		lat:      latency.NewTable(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.warps = make([]*warp.Warp, c.numWarps)
	for i := range c.warps {
		c.warps[i] = warp.New(i)
	}
	c.pendingCtrl = make([]int, c.numWarps)

	c.regFile = emu.NewRegFile(c.numWarps)
	c.predFile = emu.NewPredFile(c.numWarps)
	c.sb = pipeline.NewScoreboard(c.numWarps)
	c.sched = pipeline.NewScheduler(c.numWarps)
	c.issue = pipeline.NewIssueUnit(c.sb)
	c.collector = pipeline.NewCollector(c.numWarps, c.regFile, c.predFile)
	c.barrier = pipeline.NewBarrierUnit()
	c.wb = pipeline.NewWritebackArbiter(c.regFile, c.predFile, c.sb, c.collector)

	c.alu = emu.NewIntUnit()
	c.fpu = emu.NewFPUnit()
	c.sfu = emu.NewSpecialUnit()

	var lsuOpts []lsu.LSUOption
	if c.l1 != nil {
		lsuOpts = append(lsuOpts, lsu.WithL1(c.l1))
	}
	c.ldu = lsu.NewLSU(c.smID, c.mem, lsu.NewSharedMemory(), c.warps, c.wb, c.lat, lsuOpts...)

	return c
}

// LoadProgram decodes a program image of 64-bit instruction words. It
// replaces any previously loaded program.
func (c *Core) LoadProgram(words []uint64) {
	c.program = make([]*insts.Instruction, len(words))
	for i, w := range words {
		c.program[i] = c.decoder.Decode(w)
	}
}

// Launch starts n warps at PC 0 with all lanes active.
func (c *Core) Launch(n int) {
	if n > c.numWarps {
		n = c.numWarps
	}
	for i := 0; i < n; i++ {
		c.warps[i].Start(0)
	}
}

// Warp returns a warp slot, exposed for tests and the CLI report.
func (c *Core) Warp(id int) *warp.Warp {
	return c.warps[id]
}

// RegFile returns the vector register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// PredFile returns the predicate file.
func (c *Core) PredFile() *emu.PredFile {
	return c.predFile
}

// LSU returns the load/store unit.
func (c *Core) LSU() *lsu.LSU {
	return c.ldu
}

// L1 returns the L1 timing model, or nil when disabled.
func (c *Core) L1() *cache.L1 {
	return c.l1
}

// Scheduler returns the warp scheduler, exposed for invariant checking.
func (c *Core) Scheduler() *pipeline.Scheduler {
	return c.sched
}

// Barrier returns the barrier unit.
func (c *Core) Barrier() *pipeline.BarrierUnit {
	return c.barrier
}

// Flags returns the accumulated exception flags.
func (c *Core) Flags() emu.Flags {
	return c.flags
}

// Cycle returns the current cycle count.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Stats returns performance statistics, folding in the writeback-side
// retirement count.
func (c *Core) Stats() Stats {
	s := c.stats
	s.Cycles = c.cycle
	s.Instructions = c.wb.Stats().Retired + c.directRetired
	s.Squashes = c.wb.Stats().Squashed + c.stats.Squashes
	return s
}

// CollectorStats returns operand-collector statistics.
func (c *Core) CollectorStats() pipeline.CollectorStats {
	return c.collector.Stats()
}

// WritebackStats returns writeback statistics.
func (c *Core) WritebackStats() pipeline.WritebackStats {
	return c.wb.Stats()
}

// Done reports whether every launched warp has exited and all in-flight
// work has drained.
func (c *Core) Done() bool {
	for _, w := range c.warps {
		switch w.State {
		case warp.StateIdle, warp.StateExited:
		default:
			return false
		}
	}
	return c.wb.Pending() == 0 && c.ldu.Outstanding() == 0
}

// Tick advances the core one cycle. Stages run in reverse pipeline order so
// every stage sees the state the previous cycle committed. The returned
// error is a fatal stack fault; the core is not usable after one.
func (c *Core) Tick() error {
	if c.fault != nil {
		return c.fault
	}

	c.cycle++

	c.wb.Tick(c.cycle)
	c.ldu.Tick(c.cycle)
	c.dispatch()
	c.collector.Collect()
	c.wakeAndIssue()
	c.barrier.TryResolve(c.warps)

	return c.fault
}

// Run ticks the core until every warp exits or maxCycles elapse. It reports
// whether the program completed.
func (c *Core) Run(maxCycles uint64) (bool, error) {
	for i := uint64(0); i < maxCycles; i++ {
		if err := c.Tick(); err != nil {
			return false, err
		}
		if c.Done() {
			return true, nil
		}
	}
	return c.Done(), nil
}

// wakeAndIssue re-evaluates blocked warps, selects one, and issues up to two
// instructions from it.
func (c *Core) wakeAndIssue() {
	// Blocked states re-arm every cycle; the issue checks below re-block
	// them if the cause persists.
	for _, w := range c.warps {
		switch w.State {
		case warp.StateWaitSB, warp.StateWaitCollector:
			w.State = warp.StateReady
		case warp.StateWaitMem:
			if w.FreeIDs.Len() > 0 {
				w.State = warp.StateReady
			}
		}
	}

	wid := c.sched.Pick(func(id int) bool {
		w := c.warps[id]
		if !w.Runnable() {
			return false
		}
		// A READY warp with no free collector unit is not eligible; it
		// parks so the cycle can go to another warp.
		if c.collector.FreeFor(id) == 0 {
			w.State = warp.StateWaitCollector
			c.stats.CollectorStalls++
			return false
		}
		return true
	})
	if wid < 0 {
		c.stats.IdleCycles++
		return
	}

	w := c.warps[wid]

	// A PC past the program end is an implicit EXIT, but only once no
	// in-flight branch can still redirect it.
	if w.PC >= uint64(len(c.program)) {
		if c.pendingCtrl[wid] == 0 {
			c.exitWarp(w)
		}
		c.sched.Invalidate()
		return
	}

	first := c.program[w.PC]

	switch c.issue.CanIssue(w, first) {
	case pipeline.BlockScoreboard:
		w.State = warp.StateWaitSB
		c.stats.ScoreboardStalls++
		c.sched.Invalidate()
		return
	case pipeline.BlockTransID:
		w.State = warp.StateWaitMem
		c.stats.TransIDStalls++
		c.sched.Invalidate()
		return
	}

	c.issueOne(w, first)

	// Dual issue: the next sequential instruction may ride along when the
	// pairing rules allow and a second collector unit is free.
	if first.Class == insts.ClassCTRL || w.PC >= uint64(len(c.program)) {
		return
	}
	second := c.program[w.PC]
	if !c.issue.CanPair(first, second) {
		return
	}
	if c.issue.CanIssue(w, second) != pipeline.BlockNone {
		return
	}
	if c.collector.FreeFor(wid) == 0 {
		return
	}

	c.issueOne(w, second)
	c.stats.DualIssueCycles++
}

// issueOne reserves the scoreboard, admits the instruction into a collector
// unit, and advances the PC.
func (c *Core) issueOne(w *warp.Warp, inst *insts.Instruction) {
	c.issue.Reserve(w.ID, inst)
	c.issueSeq++
	c.collector.Allocate(pipeline.IssuedInst{
		Inst:   inst,
		WarpID: w.ID,
		PC:     w.PC,
		Tag:    w.BranchTag,
		Mask:   w.ActiveMask,
		Seq:    c.issueSeq,
	})
	if inst.Class == insts.ClassCTRL {
		c.pendingCtrl[w.ID]++
	}
	w.PC++
	c.stats.Issued++
}

// exitWarp retires a warp to the terminal state.
func (c *Core) exitWarp(w *warp.Warp) {
	w.ActiveMask = 0
	w.State = warp.StateExited
}
