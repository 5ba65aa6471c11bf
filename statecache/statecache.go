// Package statecache implements the State Change Cache (spec.md §4.6):
// a bounded ring of per-block pre-apply snapshots that lets the
// Synchronizer reverse-apply blocks on a chain reorganization.
package statecache

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/registry"
)

// ErrReorgTooDeep mirrors amm.ErrReorgTooDeep: rewinding past the
// cache's retained history is terminal for the current Synchronizer
// session (spec.md §4.6, §7).
var ErrReorgTooDeep = amm.ErrReorgTooDeep

// StateChange is one block's pre-apply snapshot set (spec.md §3).
type StateChange struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Before      map[amm.ID]amm.Pool
}

// Cache is a bounded deque of StateChange records, capacity = the
// configured reorg depth D. Oldest records fall out as new ones are
// pushed past capacity, mirroring the fixed-capacity eviction the
// teacher lineage uses for its LRU caches.
type Cache struct {
	mu      sync.Mutex
	depth   int
	records []StateChange // front (index 0) is oldest
}

// New returns an empty Cache retaining at most depth blocks of history.
func New(depth int) *Cache {
	if depth <= 0 {
		depth = 1
	}
	return &Cache{depth: depth}
}

// Push records before as the pre-apply state for blockNumber/blockHash,
// called atomically with the Synchronizer's apply of that block's logs
// (spec.md §4.6). Evicts the oldest record once capacity is exceeded.
func (c *Cache) Push(blockNumber uint64, blockHash common.Hash, before map[amm.ID]amm.Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, StateChange{
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		Before:      before,
	})
	if len(c.records) > c.depth {
		c.records = c.records[len(c.records)-c.depth:]
	}
}

// Len returns the number of retained records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// HeadBlock returns the block number of the most recently pushed
// record, and false if the cache is empty.
func (c *Cache) HeadBlock() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return 0, false
	}
	return c.records[len(c.records)-1].BlockNumber, true
}

// HashAt returns the canonical block hash retained for blockNumber, if
// still within the cache's window, for the Synchronizer's reorg
// ancestor walk-back (it compares a candidate new-chain block's hash
// against the locally known hash at the same height).
func (c *Cache) HashAt(blockNumber uint64) (common.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		if rec.BlockNumber == blockNumber {
			return rec.BlockHash, true
		}
	}
	return common.Hash{}, false
}

// RewindTo pops every record with block_number > forkBlock, restoring
// each popped record's Before snapshots into reg in reverse
// (most-recent-first) order, and returns the set of pool addresses
// touched by the rewind. Fails with ErrReorgTooDeep if forkBlock lies
// before the cache's retained window (spec.md §4.6).
func (c *Cache) RewindTo(forkBlock uint64, reg *registry.Registry) ([]amm.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil, nil
	}
	front := c.records[0]
	if forkBlock+1 < front.BlockNumber {
		return nil, fmt.Errorf("%w: fork block %d precedes retained window starting at %d",
			ErrReorgTooDeep, forkBlock, front.BlockNumber)
	}

	splitIdx := len(c.records)
	for i, rec := range c.records {
		if rec.BlockNumber > forkBlock {
			splitIdx = i
			break
		}
	}
	popped := c.records[splitIdx:]
	c.records = c.records[:splitIdx]

	touched := make(map[amm.ID]struct{})
	for i := len(popped) - 1; i >= 0; i-- {
		for addr, snapshot := range popped[i].Before {
			reg.Restore(addr, snapshot)
			touched[addr] = struct{}{}
		}
	}

	out := make([]amm.ID, 0, len(touched))
	for addr := range touched {
		out = append(out, addr)
	}
	return out, nil
}
