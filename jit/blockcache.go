package jit

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// BlockCacheConfig sizes the translated block cache.
type BlockCacheConfig struct {
	// Entries is the total number of blocks held.
	Entries int
	// Associativity (number of ways)
	Associativity int
}

// DefaultBlockCacheConfig returns the block cache geometry used when none
// is configured.
func DefaultBlockCacheConfig() BlockCacheConfig {
	return BlockCacheConfig{
		Entries:       4096,
		Associativity: 8,
	}
}

// BlockCacheStats holds block cache statistics.
type BlockCacheStats struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BlockCache maps guest addresses to translations. It uses an Akita cache
// directory with one instruction word per line and LRU replacement.
type BlockCache struct {
	config BlockCacheConfig

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// blocks is indexed by (setID * associativity + wayID)
	blocks []*Block

	stats BlockCacheStats
}

// NewBlockCache creates a block cache with the given geometry.
func NewBlockCache(config BlockCacheConfig) *BlockCache {
	numSets := config.Entries / config.Associativity
	if numSets < 1 {
		numSets = 1
	}

	return &BlockCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			4,
			akitacache.NewLRUVictimFinder(),
		),
		blocks: make([]*Block, numSets*config.Associativity),
	}
}

// Config returns the cache configuration.
func (c *BlockCache) Config() BlockCacheConfig {
	return c.config
}

// Stats returns cache statistics.
func (c *BlockCache) Stats() BlockCacheStats {
	return c.stats
}

func (c *BlockCache) index(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *BlockCache) find(addr uint32) *akitacache.Block {
	block := c.directory.Lookup(0, uint64(addr))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Lookup returns the translation for addr and marks it recently used.
func (c *BlockCache) Lookup(addr uint32) (*Block, bool) {
	c.stats.Lookups++

	block := c.find(addr)
	if block == nil {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block)
	return c.blocks[c.index(block)], true
}

// Link resolves addr to the arena offset of its code without touching
// the replacement state. Blocks without code do not link.
func (c *BlockCache) Link(addr uint32) (int, bool) {
	block := c.find(addr)
	if block == nil {
		return 0, false
	}

	b := c.blocks[c.index(block)]
	if b.Size == 0 {
		return 0, false
	}
	return b.Offset, true
}

// Insert adds b, replacing the least recently used block of its set. It
// returns the evicted block, if any. Evicted code stays in the arena so
// translations that jump into it keep working.
func (c *BlockCache) Insert(b *Block) *Block {
	addr := uint64(b.Addr)

	if existing := c.find(b.Addr); existing != nil {
		c.blocks[c.index(existing)] = b
		c.directory.Visit(existing)
		return nil
	}

	victim := c.directory.FindVictim(addr)
	i := c.index(victim)

	var evicted *Block
	if victim.IsValid {
		c.stats.Evictions++
		evicted = c.blocks[i]
	}

	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false
	c.blocks[i] = b
	c.directory.Visit(victim)

	return evicted
}

// Invalidate drops the translation for addr.
func (c *BlockCache) Invalidate(addr uint32) {
	if block := c.find(addr); block != nil {
		block.IsValid = false
		c.blocks[c.index(block)] = nil
	}
}

// Reset drops every translation and clears the statistics.
func (c *BlockCache) Reset() {
	c.directory.Reset()
	clear(c.blocks)
	c.stats = BlockCacheStats{}
}
