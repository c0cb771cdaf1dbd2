package lsu

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/timing/latency"
	"github.com/sarchlab/milosim/timing/pipeline"
	"github.com/sarchlab/milosim/timing/warp"
)

// LineSize is the global-memory line size lane accesses coalesce into.
const LineSize = 32

// LatencyModel folds cache timing into a global-memory request. A zero
// return means the request pays the full memory latency.
type LatencyModel interface {
	AccessLatency(lineAddr uint64, write bool) uint64
}

// lineGroup is one coalesced request covering the lanes that fall into a
// single memory line.
type lineGroup struct {
	rec   *accessRecord
	addrs [emu.NumLanes]uint64
	mask  uint32
	data  emu.Vector
}

// LSUOption is a functional option for configuring the LSU.
type LSUOption func(*LSU)

// WithL1 attaches a cache latency model for global accesses.
func WithL1(model LatencyModel) LSUOption {
	return func(l *LSU) {
		l.l1 = model
	}
}

// LSUStats counts memory-subsystem activity.
type LSUStats struct {
	// GlobalLoads and GlobalStores count global LDR/STR instructions.
	GlobalLoads  uint64
	GlobalStores uint64

	// SharedLoads and SharedStores count scratchpad LDS/STS instructions.
	SharedLoads  uint64
	SharedStores uint64

	// LineGroups is the number of coalesced requests sent to memory.
	LineGroups uint64

	// Replays is the number of line groups parked for lack of a free
	// transaction slot.
	Replays uint64
}

// LSU is the load/store unit: it coalesces dispatched global accesses into
// line groups, allocates one transaction slot per group from the warp's free
// FIFO, tracks outstanding transactions in the MSHR, and turns responses
// into writeback completions. A multi-line access sends its head group at
// dispatch and serializes the rest through the replay queue, one per cycle;
// groups that cannot get a slot wait there too, draining as responses
// reclaim slots.
type LSU struct {
	smID   uint8
	mem    *emu.GlobalMemory
	shared *SharedMemory
	mshr   *MSHR
	warps  []*warp.Warp
	wb     *pipeline.WritebackArbiter
	lat    *latency.Table
	l1     LatencyModel

	replay sim.Buffer

	// sharedPortFree is the first cycle the shared-memory port is idle
	// again; conflict rounds of one access push later accesses out.
	sharedPortFree uint64

	stats LSUStats
}

// NewLSU creates the load/store unit.
func NewLSU(
	smID uint8,
	memory *emu.GlobalMemory,
	shared *SharedMemory,
	warps []*warp.Warp,
	wb *pipeline.WritebackArbiter,
	lat *latency.Table,
	opts ...LSUOption,
) *LSU {
	l := &LSU{
		smID:   smID,
		mem:    memory,
		shared: shared,
		mshr:   NewMSHR(),
		warps:  warps,
		wb:     wb,
		lat:    lat,
		replay: sim.NewBuffer("LSU.ReplayQueue", len(warps)*emu.NumLanes),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats returns LSU statistics.
func (l *LSU) Stats() LSUStats {
	return l.stats
}

// Shared returns the scratchpad.
func (l *LSU) Shared() *SharedMemory {
	return l.shared
}

// Outstanding returns the number of in-flight global transactions.
func (l *LSU) Outstanding() int {
	return l.mshr.Len() + l.replay.Size()
}

// AccessGlobal dispatches a global LDR or STR: lane addresses coalesce into
// line groups. The head group claims a transaction slot and goes to memory
// now; the remaining groups serialize through the replay queue, leaving one
// per cycle. Groups that cannot claim a slot park until a response reclaims
// one.
func (l *LSU) AccessGlobal(
	ii pipeline.IssuedInst,
	addrs [emu.NumLanes]uint64,
	mask uint32,
	data emu.Vector,
) {
	rec := &accessRecord{
		warpID:  ii.WarpID,
		inst:    ii.Inst,
		isWrite: ii.Inst.IsStore(),
	}
	if rec.isWrite {
		l.stats.GlobalStores++
	} else {
		l.stats.GlobalLoads++
	}

	groups := l.coalesce(rec, addrs, mask, data)
	rec.pendingParts = len(groups)

	l.sendOrPark(groups[0])
	for _, g := range groups[1:] {
		l.replay.Push(g)
	}
}

// AccessShared dispatches an LDS or STS against the scratchpad. Each access
// occupies the shared port for one cycle per conflict round, pushing later
// accesses out. Stores take functional effect immediately; loads complete
// after the shared latency plus the extra rounds.
func (l *LSU) AccessShared(
	ii pipeline.IssuedInst,
	addrs [emu.NumLanes]uint64,
	mask uint32,
	data emu.Vector,
	cycle uint64,
) {
	rounds := l.shared.Rounds(addrs, mask)
	start := cycle
	if l.sharedPortFree > start {
		start = l.sharedPortFree
	}
	l.sharedPortFree = start + uint64(rounds)

	if ii.Inst.IsStore() {
		l.stats.SharedStores++
		l.shared.WriteVector(addrs, data, mask)
		return
	}

	l.stats.SharedLoads++
	value := l.shared.ReadVector(addrs, mask)

	l.wb.Push(&pipeline.Completion{
		Class:      pipeline.WBMem,
		WarpID:     ii.WarpID,
		Inst:       ii.Inst,
		ReadyCycle: start + l.lat.GetLatency(ii.Inst) + uint64(rounds-1),
		Mask:       mask,
		Value:      value,
		WriteReg:   true,
		ClearSB:    true,
		Retire:     true,
	})
}

// coalesce splits the active lanes into per-line groups, in first-lane
// order.
func (l *LSU) coalesce(
	rec *accessRecord,
	addrs [emu.NumLanes]uint64,
	mask uint32,
	data emu.Vector,
) []*lineGroup {
	var groups []*lineGroup
	lines := make(map[uint64]*lineGroup)

	for lane := 0; lane < emu.NumLanes; lane++ {
		if mask&(1<<uint(lane)) == 0 {
			continue
		}
		line := addrs[lane] &^ (LineSize - 1)
		g, ok := lines[line]
		if !ok {
			g = &lineGroup{rec: rec}
			lines[line] = g
			groups = append(groups, g)
		}
		g.addrs[lane] = addrs[lane]
		g.mask |= 1 << uint(lane)
		g.data[lane] = data[lane]
	}

	return groups
}

// sendOrPark sends a line group to memory if its warp has a free transaction
// slot, otherwise parks it on the replay queue.
func (l *LSU) sendOrPark(g *lineGroup) {
	w := l.warps[g.rec.warpID]
	slot, ok := w.FreeIDs.Pop()
	if !ok {
		l.replay.Push(g)
		l.stats.Replays++
		return
	}
	l.send(g, slot)
}

func (l *LSU) send(g *lineGroup, slot uint8) {
	id := PackTransID(l.smID, g.rec.warpID, slot)
	l.mshr.Add(id, &mshrEntry{rec: g.rec, partMask: g.mask, slot: slot})
	l.warps[g.rec.warpID].OutstandingMem++

	req := emu.MemReq{
		TransID:   id,
		LaneAddrs: g.addrs,
		Mask:      g.mask,
		IsWrite:   g.rec.isWrite,
		Data:      g.data,
	}
	if l.l1 != nil {
		lineAddr := firstAddr(g) &^ (LineSize - 1)
		req.Latency = l.l1.AccessLatency(lineAddr, g.rec.isWrite)
	}

	l.mem.Access(req)
	l.stats.LineGroups++
}

func firstAddr(g *lineGroup) uint64 {
	for lane := 0; lane < emu.NumLanes; lane++ {
		if g.mask&(1<<uint(lane)) != 0 {
			return g.addrs[lane]
		}
	}
	return 0
}

// Tick advances the memory subsystem one cycle: replayed groups retry for
// slots, then memory responses reclaim slots and produce writeback
// completions. The last response of a load clears its scoreboard
// reservation and retires it.
func (l *LSU) Tick(cycle uint64) {
	l.drainReplay()

	for _, rsp := range l.mem.Tick() {
		e, ok := l.mshr.Take(rsp.TransID)
		if !ok {
			continue
		}

		w := l.warps[e.rec.warpID]
		w.FreeIDs.Push(e.slot)
		w.OutstandingMem--

		e.rec.pendingParts--
		last := e.rec.pendingParts == 0

		if e.rec.isWrite {
			// Store acknowledgement: the slot reclaim above is the
			// whole effect.
			continue
		}

		l.wb.Push(&pipeline.Completion{
			Class:      pipeline.WBMem,
			WarpID:     e.rec.warpID,
			Inst:       e.rec.inst,
			ReadyCycle: cycle,
			Mask:       rsp.Mask,
			Value:      rsp.Data,
			WriteReg:   true,
			ClearSB:    last,
			Retire:     last,
		})
	}
}

// drainReplay sends the queued head group if its warp has a free slot. At
// most one group leaves per cycle, and the head blocks the rest, so group
// order within an instruction is preserved.
func (l *LSU) drainReplay() {
	if l.replay.Size() == 0 {
		return
	}
	g := l.replay.Peek().(*lineGroup)
	w := l.warps[g.rec.warpID]
	slot, ok := w.FreeIDs.Pop()
	if !ok {
		return
	}
	l.replay.Pop()
	l.send(g, slot)
}
