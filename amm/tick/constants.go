// Package tick implements the Uniswap-V3-style concentrated-liquidity
// math described in spec.md §4.1: the tick bitmap, per-tick liquidity
// bookkeeping, and the tick-crossing swap loop. This is the algorithmic
// heart of the engine (spec.md §2).
package tick

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MinTick and MaxTick bound the usable tick range, matching the
// Uniswap V3 protocol constants: price = 1.0001^tick must stay
// representable in a Q64.96 sqrt price.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// MinSqrtRatio and MaxSqrtRatio are the Q64.96 sqrt-price bounds
// corresponding to MinTick and MaxTick. Swap simulation must never
// move the price outside this range (spec.md §8 "Boundaries").
var (
	MinSqrtRatio = mustUint256("4295128739")
	MaxSqrtRatio = mustUint256("1461446703485210103287273052203988822378723970342")
)

// Q96 is 2^96, the fixed-point base for sqrt-price encoding.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func mustUint256(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic(err)
	}
	return v
}
