package pipeline

import "github.com/sarchlab/milosim/timing/warp"

// BarrierUnit implements the epoch-consistent rendezvous across resident
// warps. A warp arriving at BAR records the current global epoch and stalls;
// the barrier resolves only when every participating warp is waiting with a
// matching epoch, at which point the global epoch flips and all waiters
// release in the same cycle.
//
// The epoch bit is what keeps a fast warp's second arrival from being
// counted toward a still-open earlier barrier instance.
type BarrierUnit struct {
	globalEpoch bool

	stats BarrierStats
}

// BarrierStats counts barrier activity.
type BarrierStats struct {
	// Arrivals is the number of warp arrivals at a barrier.
	Arrivals uint64

	// Releases is the number of resolved barrier instances.
	Releases uint64
}

// NewBarrierUnit creates a barrier unit.
func NewBarrierUnit() *BarrierUnit {
	return &BarrierUnit{}
}

// GlobalEpoch returns the current global epoch bit.
func (b *BarrierUnit) GlobalEpoch() bool {
	return b.globalEpoch
}

// Stats returns barrier statistics.
func (b *BarrierUnit) Stats() BarrierStats {
	return b.stats
}

// Arrive registers a warp at the barrier: its local epoch is set to the
// global epoch and it stalls in WAITING_BARRIER.
func (b *BarrierUnit) Arrive(w *warp.Warp) {
	w.BarrierEpoch = b.globalEpoch
	w.State = warp.StateWaitBarrier
	b.stats.Arrivals++
}

// TryResolve releases the barrier if every participant has arrived with a
// matching epoch. Participants are the resident, non-exited warps; a warp
// that exits while others wait shrinks the set rather than deadlocking it.
// It reports whether a release happened.
func (b *BarrierUnit) TryResolve(warps []*warp.Warp) bool {
	arrived := 0
	for _, w := range warps {
		switch w.State {
		case warp.StateIdle, warp.StateExited:
			continue
		case warp.StateWaitBarrier:
			if w.BarrierEpoch != b.globalEpoch {
				return false
			}
			arrived++
		default:
			return false
		}
	}

	if arrived == 0 {
		return false
	}

	b.globalEpoch = !b.globalEpoch
	for _, w := range warps {
		if w.State == warp.StateWaitBarrier {
			w.State = warp.StateReady
		}
	}
	b.stats.Releases++

	return true
}
