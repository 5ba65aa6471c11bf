// Package sync implements the Synchronizer (spec.md §4.7): the single
// writer that confirms, rewinds, and applies chain blocks to the Pool
// Registry, classifying each arriving block as Extend, Reorg,
// Duplicate/Old, or Gap, the way the teacher lineage's
// core/txpool.TxPool.reset walks both the old and new chain back to a
// common ancestor on a head change.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/internal/metrics"
	"github.com/luxfi/statespace/registry"
	"github.com/luxfi/statespace/statecache"
)

// State is the Synchronizer's lifecycle state (spec.md §4.7).
type State int32

const (
	StateIdle State = iota
	StateSyncing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// maxAncestorWalk bounds how many blocks the reorg ancestor search
// will walk back before giving up with ReorgTooDeep, independent of
// the configured cache depth, to bound pathological Gap sizes.
const maxAncestorWalk = 4096

const ancestorCacheSize = 1024

// Synchronizer is the single writer over a Registry and its
// StateChangeCache (spec.md §5 "writer uniqueness").
type Synchronizer struct {
	logSource evmlog.Source
	registry  *registry.Registry
	cache     *statecache.Cache
	feed      *broadcaster

	maxConsecutiveFailures int

	headerCache *lru.Cache // common.Hash -> evmlog.Block, ancestor walk-back memo
	metrics     *metrics.Metrics

	mu    sync.Mutex
	state State
	head  evmlog.Block
	err   error

	consecutiveFailures int
}

// New constructs a Synchronizer over reg/cache, reading new blocks and
// logs from logSource. The cache's retained window bounds how deep a
// reorg can be rewound; the ancestor walk is bounded by maxAncestorWalk.
func New(logSource evmlog.Source, reg *registry.Registry, cache *statecache.Cache, m *metrics.Metrics) *Synchronizer {
	headerCache, _ := lru.New(ancestorCacheSize)
	s := &Synchronizer{
		logSource:              logSource,
		registry:               reg,
		cache:                  cache,
		headerCache:            headerCache,
		metrics:                m,
		maxConsecutiveFailures: 8,
	}
	s.feed = newBroadcaster(s.metrics.IncNotificationsDropped)
	return s
}

// Bootstrap sets the Synchronizer's initial head to the block Discovery
// populated state as of, transitioning Idle (spec.md §4.7's
// "Idle → Syncing on first block notification").
func (s *Synchronizer) Bootstrap(head evmlog.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = head
	s.state = StateIdle
}

// Head returns the current synchronized head.
func (s *Synchronizer) Head() (uint64, common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head.Number, s.head.Hash
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal fault error, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe returns a handle receiving change notifications
// (spec.md §6.2). capacity bounds the subscriber's backlog before
// notifications start being dropped (spec.md §5 "Backpressure").
func (s *Synchronizer) Subscribe(capacity int) *Subscription {
	return s.feed.subscribe(capacity)
}

// Run drives the event loop until ctx is cancelled or a terminal fault
// occurs, returning amm.ErrCancelled on clean shutdown (spec.md §5
// "Cancellation").
func (s *Synchronizer) Run(ctx context.Context) error {
	heads, err := s.logSource.SubscribeHeads(ctx)
	if err != nil {
		s.fault(err)
		return fmt.Errorf("%w: subscribing to heads: %v", amm.ErrReaderError, err)
	}
	defer s.feed.closeAll()

	for {
		select {
		case <-ctx.Done():
			return amm.ErrCancelled
		case ev, ok := <-heads:
			if !ok {
				return amm.ErrCancelled
			}
			if s.State() == StateFaulted {
				continue
			}
			if err := s.handleHead(ctx, ev.Block); err != nil {
				if errors.Is(err, amm.ErrReorgTooDeep) {
					s.fault(err)
					return err
				}
				s.recordFailure(err)
				if s.State() == StateFaulted {
					return s.Err()
				}
			} else {
				s.resetFailures()
			}
		}
	}
}

func (s *Synchronizer) recordFailure(err error) {
	s.mu.Lock()
	s.consecutiveFailures++
	fatal := s.consecutiveFailures >= s.maxConsecutiveFailures
	s.mu.Unlock()

	log.Warn("synchronizer: block handling failed", "err", err)
	if fatal {
		s.fault(err)
	}
}

func (s *Synchronizer) resetFailures() {
	s.mu.Lock()
	s.consecutiveFailures = 0
	s.mu.Unlock()
}

func (s *Synchronizer) fault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFaulted
	s.err = err
	log.Error("synchronizer: terminal fault", "err", err)
}

// handleHead classifies and processes one newly observed head block
// (spec.md §4.7).
func (s *Synchronizer) handleHead(ctx context.Context, b evmlog.Block) error {
	s.mu.Lock()
	head := s.head
	s.state = StateSyncing
	s.mu.Unlock()

	switch {
	case b.Number <= head.Number:
		// Duplicate / Old: drop.
		return nil

	case b.ParentHash == head.Hash:
		// Extend.
		return s.applyBlock(ctx, b)

	default:
		// Gap or Reorg: both require walking the new chain backward
		// until it reconnects with a block height we have local
		// knowledge of.
		return s.reconcile(ctx, b)
	}
}

// reconcile implements spec.md §4.7's Gap and Reorg branches together:
// it walks the new block's ancestry backward, comparing each height
// against the locally retained hash (current head, or the
// StateChangeCache's record for older heights), until it finds the
// fork point. A fork at exactly the current head height with no hash
// divergence below it is a pure Gap; any divergence triggers
// rewind_to before applying forward, mirroring the teacher's
// TxPool.reset double chain walk-back.
func (s *Synchronizer) reconcile(ctx context.Context, newHead evmlog.Block) error {
	s.mu.Lock()
	head := s.head
	s.mu.Unlock()

	chain := []evmlog.Block{newHead}
	cur := newHead
	steps := 0
	for {
		localHash, known := s.localHashAt(cur.Number)
		if known && localHash == cur.Hash {
			break
		}
		if cur.Number == 0 {
			return fmt.Errorf("%w: reorg ancestor search reached genesis", amm.ErrReorgTooDeep)
		}
		steps++
		if steps > maxAncestorWalk {
			return fmt.Errorf("%w: ancestor search exceeded %d blocks", amm.ErrReorgTooDeep, maxAncestorWalk)
		}
		parent, err := s.getBlockCached(ctx, cur.ParentHash, cur.Number-1)
		if err != nil {
			return fmt.Errorf("%w: fetching ancestor %d: %v", amm.ErrReaderError, cur.Number-1, err)
		}
		chain = append(chain, parent)
		cur = parent
	}
	ancestor := cur

	if ancestor.Number < head.Number {
		s.metrics.ObserveReorgDepth(int(head.Number - ancestor.Number))
		touched, err := s.cache.RewindTo(ancestor.Number, s.registry)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.head = ancestor
		s.mu.Unlock()
		s.feed.send(Notification{BlockNumber: ancestor.Number, BlockHash: ancestor.Hash, Touched: touched, Reverted: true})
	} else {
		s.mu.Lock()
		s.head = ancestor
		s.mu.Unlock()
	}

	// chain is newHead..ancestor, newest first; apply oldest-first.
	for i := len(chain) - 2; i >= 0; i-- {
		if err := s.applyBlock(ctx, chain[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) localHashAt(number uint64) (common.Hash, bool) {
	s.mu.Lock()
	head := s.head
	s.mu.Unlock()
	if number == head.Number {
		return head.Hash, true
	}
	return s.cache.HashAt(number)
}

func (s *Synchronizer) getBlockCached(ctx context.Context, hash common.Hash, number uint64) (evmlog.Block, error) {
	if v, ok := s.headerCache.Get(hash); ok {
		return v.(evmlog.Block), nil
	}
	b, err := s.logSource.GetBlock(ctx, hash, number)
	if err != nil {
		return evmlog.Block{}, err
	}
	s.headerCache.Add(hash, b)
	return b, nil
}

// applyBlock implements spec.md §4.7's four-step apply sequence.
func (s *Synchronizer) applyBlock(ctx context.Context, b evmlog.Block) error {
	logs, err := s.logSource.LogsForBlock(ctx, b.Hash)
	if err != nil {
		return fmt.Errorf("%w: fetching logs for block %d: %v", amm.ErrReaderError, b.Number, err)
	}
	evmlog.SortLogs(logs)

	before := make(map[amm.ID]amm.Pool)
	touchedSet := make(map[amm.ID]struct{})
	for _, l := range logs {
		pool := s.registry.Get(l.Address)
		if pool == nil {
			continue
		}
		if !recognizesTopic(pool, l.Topic0()) {
			continue
		}
		if _, ok := before[l.Address]; !ok {
			before[l.Address] = pool.Snapshot()
		}
		touchedSet[l.Address] = struct{}{}
	}

	for _, l := range logs {
		pool := s.registry.GetMut(l.Address)
		if pool == nil {
			continue
		}
		if err := pool.Sync(l); err != nil {
			log.Debug("synchronizer: dropping log", "pool", l.Address, "err", err)
			continue
		}
	}

	s.cache.Push(b.Number, b.Hash, before)

	s.mu.Lock()
	s.head = b
	s.mu.Unlock()
	s.metrics.SetHeadBlock(b.Number)

	touched := make([]amm.ID, 0, len(touchedSet))
	for addr := range touchedSet {
		touched = append(touched, addr)
	}
	s.feed.send(Notification{BlockNumber: b.Number, BlockHash: b.Hash, Touched: touched})
	return nil
}

func recognizesTopic(pool amm.Pool, topic common.Hash) bool {
	for _, t := range pool.SyncEvents() {
		if t == topic {
			return true
		}
	}
	return false
}

