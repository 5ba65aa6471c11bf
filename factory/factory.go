// Package factory implements the per-protocol Factory variants of
// spec.md §4.2: each recognizes one pool-creation event signature and
// turns a decoded creation log into an empty Pool shell with only its
// immutable fields populated.
package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
)

// Factory discovers and instantiates pools for one AMM protocol
// (spec.md §4.2).
type Factory interface {
	// Address is the on-chain factory/deployer contract address.
	Address() common.Address

	// CreationBlock is where Discovery starts scanning this factory's
	// creation-event log range.
	CreationBlock() uint64

	// PoolCreationEventSignature is the topic-0 this factory's
	// creation logs carry (e.g. UniswapV2Factory.PairCreated).
	PoolCreationEventSignature() common.Hash

	// PoolVariantDefault identifies which Pool implementation
	// CreatePoolShell returns, for Discovery's per-variant grouping.
	PoolVariantDefault() amm.Variant

	// CreatePoolShell parses a creation log into an empty pool with
	// only immutable fields (addresses, fee tier, tick spacing) set.
	// Discovery populates the rest via the Batch State Reader.
	CreatePoolShell(log evmlog.Log) (amm.Pool, error)

	// SyncEvents is the union of its pool variant's sync events, so
	// the Synchronizer can subscribe once per factory (spec.md §4.2).
	SyncEvents() []common.Hash
}
