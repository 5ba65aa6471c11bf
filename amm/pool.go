// Package amm implements the polymorphic AMM pool abstraction: the
// protocol-specific variants (constant-product, concentrated-liquidity,
// ERC-4626 vault, weighted) unified behind one capability set
// (spec.md §3, §4.1, §9 "Polymorphism").
//
// The source this spec was distilled from uses a closed sum type with
// exhaustive pattern matching. Go has no closed sum types, so each
// variant is a concrete struct implementing the Pool interface, and the
// variant tag (Variant) lets code that needs exhaustive knowledge of
// cases — snapshotting, pool-creation-log parsing, the value filter's
// per-variant liquidity estimate — switch on it without a type
// assertion chain.
package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// Variant tags the concrete pool implementation, standing in for the
// closed sum type of the Rust source (spec.md §9).
type Variant uint8

const (
	VariantConstantProduct Variant = iota
	VariantConcentrated
	VariantVault4626
	VariantWeighted
)

func (v Variant) String() string {
	switch v {
	case VariantConstantProduct:
		return "constant-product"
	case VariantConcentrated:
		return "concentrated-liquidity"
	case VariantVault4626:
		return "erc4626-vault"
	case VariantWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// ID is the Registry's primary key: a pool's on-chain address.
type ID = common.Address

// SwapResult is the outcome of a (possibly mutating) swap simulation.
type SwapResult struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Pool is the capability set every variant exposes uniformly
// (spec.md §3 "Every variant exposes the same capability set").
//
// Implementations must be safe to call from the single Synchronizer
// writer goroutine; read-side callers interact with deep copies
// obtained via Snapshot, never with a live pool concurrently with a
// write (spec.md §5).
type Pool interface {
	// Address is the pool's on-chain identity, the Registry's primary key.
	Address() common.Address

	// Variant identifies which concrete pricing model this pool uses.
	Variant() Variant

	// Tokens returns every token this pool holds, used to populate the
	// Registry's secondary token index.
	Tokens() []token.Token

	// SyncEvents returns the constant set of topic-0 signatures that
	// can mutate this pool, so the Synchronizer can subscribe to their
	// union (spec.md §4.2, §6.4).
	SyncEvents() []common.Hash

	// Sync applies one decoded log to the pool's mutable state. It
	// returns ErrLogMismatch if log.Topic0() is not one of SyncEvents().
	Sync(log evmlog.Log) error

	// Price returns the spot price of one base-token unit in
	// quote-token units, using only local state.
	Price(base, quote common.Address) (float64, error)

	// SimulateSwap computes the output amount for a given input amount
	// without mutating pool state.
	SimulateSwap(base, quote common.Address, amountIn *big.Int) (SwapResult, error)

	// SimulateSwapMut computes the same result as SimulateSwap and
	// additionally commits the resulting state mutation to the pool.
	SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (SwapResult, error)

	// Snapshot returns a deep, independent copy of the pool's current
	// state, used by the State Change Cache to capture pre-apply state
	// and by read-side callers that need a consistent view.
	Snapshot() Pool

	// Restore overwrites this pool's mutable state with that of a
	// snapshot previously produced by Snapshot, used to reverse-apply
	// on reorg. The snapshot must be of the same Variant and Address.
	Restore(snapshot Pool)
}

// HasToken reports whether addr is one of pool's tokens.
func HasToken(p Pool, addr common.Address) bool {
	for _, t := range p.Tokens() {
		if t.Address == addr {
			return true
		}
	}
	return false
}

// OtherToken returns the token in p's pair that is not addr, used by
// two-sided variants when resolving base/quote from a single address.
func OtherToken(p Pool, addr common.Address) (token.Token, bool) {
	for _, t := range p.Tokens() {
		if t.Address != addr {
			return t, true
		}
	}
	return token.Token{}, false
}
