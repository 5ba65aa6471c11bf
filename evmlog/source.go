package evmlog

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Filter selects a range of historic logs, or the set of topics a live
// subscription should match (spec.md §6.1).
type Filter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    []common.Hash
}

// HeadEvent is delivered by Source's head subscription: a new block has
// become (tentatively) canonical at the source's tip.
type HeadEvent struct {
	Block Block
}

// Source is the abstract "Log Source" collaborator described in
// spec.md §6.1. It is not implemented by this module — callers supply
// a concrete adapter over their chain client or batch-RPC layer.
type Source interface {
	// Logs returns historic logs matching filter, ordered by
	// (block_number, tx_index, log_index).
	Logs(ctx context.Context, filter Filter) ([]Log, error)

	// SubscribeHeads streams new block headers as they arrive at the
	// source's notion of chain head. The returned channel is closed
	// when the subscription ends; ctx cancellation ends it.
	SubscribeHeads(ctx context.Context) (<-chan HeadEvent, error)

	// LogsForBlock returns the decoded, ordered logs belonging to a
	// single block, used by the Synchronizer to apply exactly one
	// block's worth of mutations.
	LogsForBlock(ctx context.Context, hash common.Hash) ([]Log, error)

	// GetBlock resolves a header by hash or, if hash is the zero hash,
	// by number. It is the primitive the Synchronizer uses to walk
	// back to a common ancestor during a reorg.
	GetBlock(ctx context.Context, hash common.Hash, number uint64) (Block, error)

	// HeadBlock returns the source's current notion of chain head,
	// used by Discovery to resolve "latest" when the Builder does not
	// pin a starting block.
	HeadBlock(ctx context.Context) (Block, error)
}
