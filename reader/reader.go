// Package reader defines the Batch State Reader abstract collaborator
// (spec.md §4.4): a caller-supplied implementation that fetches
// per-pool static and dynamic chain state in batched RPC round-trips.
// This package owns only the interface and per-variant chunk-size
// policy; the RPC transport itself is explicitly out of scope
// (spec.md §1).
package reader

import (
	"context"

	"github.com/luxfi/statespace/amm"
)

// ChunkSizes bounds how many pool addresses Discovery batches into a
// single read_static/read_dynamic call, per variant (SPEC_FULL.md
// "Per-variant batch size defaults"). Zero means "use the package
// default for that variant".
type ChunkSizes struct {
	ConstantProduct int
	Concentrated    int
	Vault4626       int
	Weighted        int
}

// DefaultChunkSizes matches spec.md §4.4's suggested batch sizes.
var DefaultChunkSizes = ChunkSizes{
	ConstantProduct: 127,
	Concentrated:    76,
	Vault4626:       200,
	Weighted:        150,
}

// ForVariant returns the configured chunk size for v, falling back to
// DefaultChunkSizes when the field is unset.
func (c ChunkSizes) ForVariant(v amm.Variant) int {
	fallback := DefaultChunkSizes
	switch v {
	case amm.VariantConstantProduct:
		if c.ConstantProduct > 0 {
			return c.ConstantProduct
		}
		return fallback.ConstantProduct
	case amm.VariantConcentrated:
		if c.Concentrated > 0 {
			return c.Concentrated
		}
		return fallback.Concentrated
	case amm.VariantVault4626:
		if c.Vault4626 > 0 {
			return c.Vault4626
		}
		return fallback.Vault4626
	case amm.VariantWeighted:
		if c.Weighted > 0 {
			return c.Weighted
		}
		return fallback.Weighted
	default:
		return 100
	}
}

// Reader is the Batch State Reader collaborator (spec.md §4.4).
// Implementations populate pool shells in place; a pool that cannot be
// populated (missing decimals, zero code size, reverted read) is left
// untouched and the caller treats it as a populate failure.
type Reader interface {
	// ReadStatic fetches immutable per-pool data (tokens, decimals,
	// fee, tick spacing, vault asset, weighted-pool weights, and a
	// vault's four deposit/redeem fee-delta probes) for the given
	// batch, writing it into each shell in place. Returns the subset
	// of addresses that could not be populated.
	ReadStatic(ctx context.Context, batch []amm.Pool) (failed []amm.ID, err error)

	// ReadDynamic fetches point-in-time dynamic state (reserves,
	// slot0/liquidity/tick bitmap and tick infos, vault totals,
	// weighted-pool balances) at blockNumber for the given batch,
	// writing it into each pool in place. Returns the subset of
	// addresses that could not be populated.
	ReadDynamic(ctx context.Context, batch []amm.Pool, blockNumber uint64) (failed []amm.ID, err error)
}
