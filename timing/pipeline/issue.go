package pipeline

import (
	"github.com/sarchlab/milosim/insts"
	"github.com/sarchlab/milosim/timing/warp"
)

// IssuedInst is an instruction in flight between issue and writeback. It
// carries the branch tag its warp had at fetch time; the tag is compared
// again at dispatch to filter wrong-path instructions.
type IssuedInst struct {
	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// WarpID is the owning warp slot.
	WarpID int

	// PC is the instruction's index in the program.
	PC uint64

	// Tag is the warp's branch tag observed at fetch time.
	Tag uint8

	// Mask is the warp's active mask at issue. The guard predicate is
	// folded in at dispatch, once collected.
	Mask uint32

	// Seq orders in-flight instructions by issue time; dispatch drains a
	// warp's collector units oldest-first.
	Seq uint64
}

// BlockReason says why an instruction could not issue this cycle.
type BlockReason int

// Issue block reasons.
const (
	// BlockNone means the instruction may issue.
	BlockNone BlockReason = iota

	// BlockScoreboard means a source or destination register (or
	// predicate) has an outstanding writer.
	BlockScoreboard

	// BlockTransID means the warp's free transaction-ID FIFO is empty.
	BlockTransID
)

// IssueUnit performs the per-instruction and pairing checks of the decode /
// dual-issue stage.
type IssueUnit struct {
	sb *Scoreboard
}

// NewIssueUnit creates an issue unit over the given scoreboard.
func NewIssueUnit(sb *Scoreboard) *IssueUnit {
	return &IssueUnit{sb: sb}
}

// CanIssue checks a single instruction against the scoreboard and the
// warp's memory-transaction budget.
func (u *IssueUnit) CanIssue(w *warp.Warp, inst *insts.Instruction) BlockReason {
	// Destination check: at most one outstanding writer per register.
	if inst.WritesRd() && u.sb.RegPending(w.ID, inst.Rd) {
		return BlockScoreboard
	}
	if inst.WritesPred() && u.sb.PredPending(w.ID, inst.DstPred()) {
		return BlockScoreboard
	}

	// Source checks.
	for _, src := range inst.SrcRegs() {
		if u.sb.RegPending(w.ID, src) {
			return BlockScoreboard
		}
	}
	for _, p := range inst.ReadsPred() {
		if u.sb.PredPending(w.ID, p) {
			return BlockScoreboard
		}
	}

	// Global memory operations need a transaction ID; stall at issue
	// until a response reclaims one.
	if inst.Class == insts.ClassLSU && !inst.IsShared() && w.FreeIDs.Len() == 0 {
		return BlockTransID
	}

	return BlockNone
}

// CanPair checks if two consecutive instructions from the same warp can form
// a dual-issue group. The first instruction is assumed to have passed
// CanIssue already.
func (u *IssueUnit) CanPair(first, second *insts.Instruction) bool {
	if first == nil || second == nil {
		return false
	}

	// CTRL never pairs, in either slot.
	if first.Class == insts.ClassCTRL || second.Class == insts.ClassCTRL {
		return false
	}

	// Two instructions of the same class never pair; this also limits
	// the group to one LSU operation (one memory port per warp).
	if first.Class == second.Class {
		return false
	}

	// RAW: second must not read what first writes.
	if first.WritesRd() {
		for _, src := range second.SrcRegs() {
			if src == first.Rd {
				return false
			}
		}
	}
	if first.WritesPred() {
		for _, p := range second.ReadsPred() {
			if p == first.DstPred() {
				return false
			}
		}
	}

	// WAW: the pair must not write the same destination.
	if first.WritesRd() && second.WritesRd() && first.Rd == second.Rd {
		return false
	}
	if first.WritesPred() && second.WritesPred() && first.DstPred() == second.DstPred() {
		return false
	}

	return true
}

// Reserve sets the scoreboard bits for an issued instruction. This happens
// at issue, before dispatch; it is what makes out-of-order completion safe.
func (u *IssueUnit) Reserve(warpID int, inst *insts.Instruction) {
	if inst.WritesRd() {
		u.sb.SetReg(warpID, inst.Rd)
	}
	if inst.WritesPred() {
		u.sb.SetPred(warpID, inst.DstPred())
	}
}
