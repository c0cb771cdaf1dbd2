// Package lsu implements the memory subsystem of the SM core: global-memory
// coalescing with MSHR-style transaction tracking, the replay queue for
// transaction-slot exhaustion, and the banked shared-memory scratchpad.
package lsu

import "github.com/sarchlab/milosim/insts"

// Transaction IDs pack the full provenance of a memory request so a response
// can be routed without any lookup outside this SM:
//
//	[15:11] SM ID
//	[10:6]  warp slot
//	[5:0]   transaction slot
const (
	smIDShift   = 11
	warpIDShift = 6
	slotMask    = 0x3F
)

// PackTransID builds a transaction ID from its fields.
func PackTransID(smID uint8, warpID int, slot uint8) uint16 {
	return uint16(smID&0x1F)<<smIDShift |
		uint16(warpID&0x1F)<<warpIDShift |
		uint16(slot&slotMask)
}

// UnpackTransID splits a transaction ID into its fields.
func UnpackTransID(id uint16) (smID uint8, warpID int, slot uint8) {
	return uint8(id >> smIDShift), int((id >> warpIDShift) & 0x1F), uint8(id & slotMask)
}

// accessRecord tracks one in-flight LDR or STR instruction across its
// coalesced line groups. The instruction completes only when every group has
// a response; groups parked in the replay queue count as pending from the
// start.
type accessRecord struct {
	warpID  int
	inst    *insts.Instruction
	isWrite bool

	// pendingParts is the number of line groups without a response yet.
	pendingParts int
}

// mshrEntry binds an outstanding transaction ID to its parent record.
type mshrEntry struct {
	rec      *accessRecord
	partMask uint32
	slot     uint8
}

// MSHR is the miss-status table: one entry per outstanding global-memory
// transaction, keyed by transaction ID.
type MSHR struct {
	entries map[uint16]*mshrEntry
}

// NewMSHR creates an empty MSHR table.
func NewMSHR() *MSHR {
	return &MSHR{entries: make(map[uint16]*mshrEntry)}
}

// Add registers an outstanding transaction.
func (m *MSHR) Add(id uint16, e *mshrEntry) {
	m.entries[id] = e
}

// Take removes and returns the entry for a response's transaction ID. A
// response with no entry is a protocol violation by the memory collaborator.
func (m *MSHR) Take(id uint16) (*mshrEntry, bool) {
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	return e, ok
}

// Len returns the number of outstanding transactions.
func (m *MSHR) Len() int {
	return len(m.entries)
}
