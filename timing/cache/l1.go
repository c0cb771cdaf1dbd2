// Package cache provides an optional L1 data-cache timing model built on
// Akita cache components. The model tracks tags only: instruction data lives
// in the functional memory image, so a cache access decides the latency of a
// global-memory request, never its value.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
}

// DefaultL1Config returns the default L1 data-cache configuration: 4KB,
// 4-way, with the 32-byte line the coalescer produces.
func DefaultL1Config() Config {
	return Config{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     32,
		HitLatency:    4,
	}
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// L1 is a tag-only L1 data cache. Hits return the configured hit latency;
// misses allocate the line and return zero, which the memory subsystem
// interprets as the full memory round trip.
type L1 struct {
	config    Config
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// NewL1 creates an L1 cache with the given configuration.
func NewL1(config Config) *L1 {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &L1{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *L1) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *L1) Stats() Statistics {
	return c.stats
}

// AccessLatency looks up one line and returns the latency contribution of
// the cache: the hit latency on a hit, zero on a miss. Misses allocate with
// write-allocate on both reads and writes.
func (c *L1) AccessLatency(lineAddr uint64, write bool) uint64 {
	if write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := (lineAddr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if write {
			block.IsDirty = true
		}
		return c.config.HitLatency
	}

	c.stats.Misses++
	c.allocate(blockAddr, write)
	return 0
}

// allocate installs a line on a miss, evicting the LRU victim.
func (c *L1) allocate(blockAddr uint64, write bool) {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return
	}

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	c.directory.Visit(victim)
}

// Reset invalidates all cache lines and clears the statistics.
func (c *L1) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
