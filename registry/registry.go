// Package registry implements the Pool Registry (spec.md §3, §4.3):
// the single owner of every discovered Pool, indexed by address and
// by participating token, guarded for single-writer/many-reader
// access the way [forks.Registry] in the teacher lineage guards its
// fork table with a sync.RWMutex.
package registry

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/statespace/amm"
)

// ErrDuplicateAddress is returned by Insert when a pool with the same
// address is already registered.
var ErrDuplicateAddress = errors.New("registry: duplicate pool address")

// Registry owns every discovered pool. It is created empty by
// Discovery and thereafter mutated only by the Synchronizer
// (spec.md §4.3, §5 "writer uniqueness").
type Registry struct {
	mu      sync.RWMutex
	primary map[amm.ID]amm.Pool
	byToken map[common.Address]mapset.Set[amm.ID]
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		primary: make(map[amm.ID]amm.Pool),
		byToken: make(map[common.Address]mapset.Set[amm.ID]),
	}
}

// Insert adds pool under its address, indexing it under every token
// it holds. Rejects duplicate addresses (spec.md §4.3).
func (r *Registry) Insert(pool amm.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := pool.Address()
	if _, exists := r.primary[addr]; exists {
		return ErrDuplicateAddress
	}
	r.primary[addr] = pool
	for _, t := range pool.Tokens() {
		set, ok := r.byToken[t.Address]
		if !ok {
			set = mapset.NewThreadUnsafeSet[amm.ID]()
			r.byToken[t.Address] = set
		}
		set.Add(addr)
	}
	return nil
}

// Get returns the pool at addr, or nil if unknown. The returned value
// is the live pool; callers outside the Synchronizer must not mutate
// it — use Snapshot for a safe read-side copy.
func (r *Registry) Get(addr amm.ID) amm.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary[addr]
}

// GetMut returns the live pool at addr for the Synchronizer's
// exclusive mutation path. Callers must hold no other reference to
// this Registry's read lock concurrently.
func (r *Registry) GetMut(addr amm.ID) amm.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primary[addr]
}

// ByToken returns the set of pool addresses holding token addr.
func (r *Registry) ByToken(addr common.Address) []amm.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byToken[addr]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

// Remove deletes a pool from both indices (spec.md §4.3: used only by
// Discovery's filter stage).
func (r *Registry) Remove(addr amm.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(addr)
}

func (r *Registry) removeLocked(addr amm.ID) {
	pool, ok := r.primary[addr]
	if !ok {
		return
	}
	delete(r.primary, addr)
	for _, t := range pool.Tokens() {
		if set, ok := r.byToken[t.Address]; ok {
			set.Remove(addr)
			if set.Cardinality() == 0 {
				delete(r.byToken, t.Address)
			}
		}
	}
}

// Snapshot returns a deep copy of the pool at addr, or nil if unknown,
// for the State Change Cache's before-map and for read-side callers
// needing a consistent view (spec.md §4.3, §5).
func (r *Registry) Snapshot(addr amm.ID) amm.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.primary[addr]
	if !ok {
		return nil
	}
	return pool.Snapshot()
}

// Restore overwrites the live pool at addr with snapshot's state
// in place (used to reverse-apply on reorg). A snapshot for an
// address no longer present is a no-op.
func (r *Registry) Restore(addr amm.ID, snapshot amm.Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pool, ok := r.primary[addr]; ok {
		pool.Restore(snapshot)
	}
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.primary)
}

// Addresses returns every registered pool address, for callers (the
// Value Filter, metrics) that need to walk the full membership.
func (r *Registry) Addresses() []amm.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]amm.ID, 0, len(r.primary))
	for addr := range r.primary {
		out = append(out, addr)
	}
	return out
}
