package lsu

import (
	"encoding/binary"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/milosim/emu"
)

// Shared-memory geometry.
const (
	// SharedMemBytes is the scratchpad capacity.
	SharedMemBytes = 16 * 1024

	// NumSharedBanks is the number of word-interleaved banks. Bank of a
	// word address a is (a/4) mod NumSharedBanks.
	NumSharedBanks = 32
)

// SharedMemory is the on-chip scratchpad: a word-interleaved banked store
// with single-cycle-per-round access. Lanes hitting distinct words of the
// same bank serialize into extra rounds; lanes reading the same word
// broadcast in one round.
type SharedMemory struct {
	storage *mem.Storage

	stats SharedStats
}

// SharedStats counts scratchpad activity.
type SharedStats struct {
	// Accesses is the number of LDS/STS instructions served.
	Accesses uint64

	// ConflictRounds is the number of extra serialization rounds beyond
	// the first, summed over all accesses.
	ConflictRounds uint64
}

// NewSharedMemory creates the scratchpad.
func NewSharedMemory() *SharedMemory {
	return &SharedMemory{storage: mem.NewStorage(SharedMemBytes)}
}

// Stats returns scratchpad statistics.
func (s *SharedMemory) Stats() SharedStats {
	return s.stats
}

// wrap confines an address to the scratchpad aperture.
func wrap(addr uint64) uint64 {
	return addr & (SharedMemBytes - 1)
}

// Rounds returns the number of serialized access rounds for the given lane
// addresses: the maximum, over all banks, of the number of distinct word
// addresses the active lanes direct at that bank. Identical addresses in a
// bank broadcast and count once.
func (s *SharedMemory) Rounds(addrs [emu.NumLanes]uint64, mask uint32) int {
	var seen [NumSharedBanks][]uint64

	rounds := 0
	for lane := 0; lane < emu.NumLanes; lane++ {
		if mask&(1<<uint(lane)) == 0 {
			continue
		}
		word := wrap(addrs[lane]) >> 2
		bank := word % NumSharedBanks

		dup := false
		for _, w := range seen[bank] {
			if w == word {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[bank] = append(seen[bank], word)
		if len(seen[bank]) > rounds {
			rounds = len(seen[bank])
		}
	}

	if rounds == 0 {
		rounds = 1
	}
	return rounds
}

// ReadVector gathers per-lane words for the lanes in mask and records the
// access in the statistics.
func (s *SharedMemory) ReadVector(addrs [emu.NumLanes]uint64, mask uint32) emu.Vector {
	s.note(addrs, mask)

	var v emu.Vector
	for lane := 0; lane < emu.NumLanes; lane++ {
		if mask&(1<<uint(lane)) != 0 {
			v[lane] = s.Read32(addrs[lane])
		}
	}
	return v
}

// WriteVector scatters per-lane words for the lanes in mask. When several
// lanes write the same word, the highest-numbered lane wins.
func (s *SharedMemory) WriteVector(addrs [emu.NumLanes]uint64, data emu.Vector, mask uint32) {
	s.note(addrs, mask)

	for lane := 0; lane < emu.NumLanes; lane++ {
		if mask&(1<<uint(lane)) != 0 {
			s.Write32(addrs[lane], data[lane])
		}
	}
}

func (s *SharedMemory) note(addrs [emu.NumLanes]uint64, mask uint32) {
	s.stats.Accesses++
	s.stats.ConflictRounds += uint64(s.Rounds(addrs, mask) - 1)
}

// Read32 reads one word from the scratchpad.
func (s *SharedMemory) Read32(addr uint64) uint32 {
	data, err := s.storage.Read(wrap(addr), 4)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// Write32 writes one word to the scratchpad.
func (s *SharedMemory) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	_ = s.storage.Write(wrap(addr), buf[:])
}
