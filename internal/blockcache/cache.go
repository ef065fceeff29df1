// Package blockcache holds a bounded, in-memory view of recent block
// hashes for one chain crawler, used by the reorg probe and to stamp
// blockHash/blockTime onto persisted rows. It belongs to exactly one
// crawler instance and is never shared across chains, and it is not
// persisted: a restart starts with an empty cache that is rebuilt lazily.
package blockcache

import "sync"

// Entry is the cached view of one block height.
type Entry struct {
	Hash       string
	ParentHash string
	BlockTime  int64 // milliseconds since epoch
}

// Cache is a mutex-guarded map from block number to Entry, bounded to the
// last reorgDepth blocks by periodic Prune calls from the crawler loop.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
}

// New creates an empty block cache.
func New() *Cache {
	return &Cache{entries: make(map[uint64]Entry)}
}

// Get returns the cached entry for n, or false if it is a miss.
func (c *Cache) Get(n uint64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[n]
	return e, ok
}

// Put stores (or overwrites) the entry for n. Idempotent.
func (c *Cache) Put(n uint64, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[n] = e
}

// Prune removes every entry with number <= keepAbove.
func (c *Cache) Prune(keepAbove uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.entries {
		if n <= keepAbove {
			delete(c.entries, n)
		}
	}
}

// Drop removes every entry with number >= fromInclusive, used when a reorg
// rollback invalidates the cached view of the rolled-back range.
func (c *Cache) Drop(fromInclusive uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.entries {
		if n >= fromInclusive {
			delete(c.entries, n)
		}
	}
}

// Len reports how many entries are currently cached, for tests and metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
