package emu

import (
	"encoding/binary"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// MemReq is a global-memory request as seen by the external memory
// collaborator: one coalesced access covering lanes within a single memory
// line, tagged with the transaction ID the core will match the response by.
type MemReq struct {
	// TransID is the {SM, warp, slot} transaction identifier.
	TransID uint16

	// LaneAddrs are the per-lane byte addresses; only lanes in Mask are
	// meaningful.
	LaneAddrs [NumLanes]uint64

	// Mask selects the lanes this request serves.
	Mask uint32

	// IsWrite distinguishes stores from loads.
	IsWrite bool

	// Data carries per-lane store data for writes.
	Data Vector

	// Latency overrides the memory model's latency for this request when
	// non-zero. The LSU uses it to fold L1 hit/miss timing into the
	// request.
	Latency uint64
}

// MemRsp is a global-memory response. Loads carry per-lane data for the
// lanes in Mask; store responses are pure acknowledgements.
type MemRsp struct {
	// TransID matches the originating request.
	TransID uint16

	// Data holds per-lane load data.
	Data Vector

	// Mask echoes the request's lane mask.
	Mask uint32

	// IsWrite marks a store acknowledgement.
	IsWrite bool
}

// GlobalMemoryOption is a functional option for configuring GlobalMemory.
type GlobalMemoryOption func(*GlobalMemory)

// WithLatency sets the fixed response latency in cycles.
func WithLatency(cycles uint64) GlobalMemoryOption {
	return func(g *GlobalMemory) {
		g.latency = cycles
	}
}

// WithLatencyFunc sets a per-request latency function. Tests use it to force
// out-of-order response arrival.
func WithLatencyFunc(fn func(MemReq) uint64) GlobalMemoryOption {
	return func(g *GlobalMemory) {
		g.latencyFn = fn
	}
}

// pendingAccess is an in-flight memory transaction.
type pendingAccess struct {
	req        MemReq
	readyCycle uint64
}

// GlobalMemory models the external memory collaborator: an addressable byte
// store (Akita mem.Storage) behind a request/response interface with
// configurable latency. Responses may be produced in any order relative to
// request issue; the core never assumes otherwise.
type GlobalMemory struct {
	storage   *mem.Storage
	latency   uint64
	latencyFn func(MemReq) uint64

	pending []pendingAccess
	cycle   uint64
}

// DefaultMemoryLatency is the fixed global-memory latency in cycles.
const DefaultMemoryLatency = 100

// NewGlobalMemory creates a global memory of the given byte capacity.
func NewGlobalMemory(capacity uint64, opts ...GlobalMemoryOption) *GlobalMemory {
	g := &GlobalMemory{
		storage: mem.NewStorage(capacity),
		latency: DefaultMemoryLatency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Access enqueues a request. The functional effect of a store is applied
// immediately; loads sample the storage when the response is produced.
func (g *GlobalMemory) Access(req MemReq) {
	if req.IsWrite {
		for lane := 0; lane < NumLanes; lane++ {
			if req.Mask&(1<<uint(lane)) != 0 {
				g.Write32(req.LaneAddrs[lane], req.Data[lane])
			}
		}
	}

	lat := req.Latency
	if lat == 0 {
		if g.latencyFn != nil {
			lat = g.latencyFn(req)
		} else {
			lat = g.latency
		}
	}

	g.pending = append(g.pending, pendingAccess{
		req:        req,
		readyCycle: g.cycle + lat,
	})
}

// Tick advances the memory model one cycle and returns the responses that
// become ready this cycle.
func (g *GlobalMemory) Tick() []MemRsp {
	g.cycle++

	var ready []MemRsp
	remaining := g.pending[:0]
	for _, p := range g.pending {
		if p.readyCycle > g.cycle {
			remaining = append(remaining, p)
			continue
		}

		rsp := MemRsp{
			TransID: p.req.TransID,
			Mask:    p.req.Mask,
			IsWrite: p.req.IsWrite,
		}
		if !p.req.IsWrite {
			for lane := 0; lane < NumLanes; lane++ {
				if p.req.Mask&(1<<uint(lane)) != 0 {
					rsp.Data[lane] = g.Read32(p.req.LaneAddrs[lane])
				}
			}
		}
		ready = append(ready, rsp)
	}
	g.pending = remaining

	return ready
}

// Outstanding returns the number of in-flight transactions.
func (g *GlobalMemory) Outstanding() int {
	return len(g.pending)
}

// Read32 reads a 32-bit word from the backing storage. Out-of-range reads
// return zero.
func (g *GlobalMemory) Read32(addr uint64) uint32 {
	data, err := g.storage.Read(addr, 4)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// Write32 writes a 32-bit word to the backing storage. Out-of-range writes
// are dropped.
func (g *GlobalMemory) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	_ = g.storage.Write(addr, buf[:])
}
