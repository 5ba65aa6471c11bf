package tick

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Info is the per-tick liquidity bookkeeping record from spec.md §3:
// `TickInfo{ liquidity_gross: u128, liquidity_net: i128, initialized: bool }`.
type Info struct {
	LiquidityGross *uint256.Int
	LiquidityNet   *big.Int
	Initialized    bool
}

func newInfo() *Info {
	return &Info{LiquidityGross: new(uint256.Int), LiquidityNet: new(big.Int)}
}

// Table is the tick: i32 → Info map, kept mutually consistent with a
// Bitmap by the Update method.
type Table struct {
	ticks map[int32]*Info
}

// NewTable returns an empty tick table.
func NewTable() *Table {
	return &Table{ticks: make(map[int32]*Info)}
}

// Get returns the Info for a tick, or nil if it has never been touched.
func (t *Table) Get(tickIdx int32) *Info {
	return t.ticks[tickIdx]
}

// Clone deep-copies the table, used by Pool.Snapshot.
func (t *Table) Clone() *Table {
	out := NewTable()
	for k, v := range t.ticks {
		out.ticks[k] = &Info{
			LiquidityGross: new(uint256.Int).Set(v.LiquidityGross),
			LiquidityNet:   new(big.Int).Set(v.LiquidityNet),
			Initialized:    v.Initialized,
		}
	}
	return out
}

// Update applies a Mint (positive amount) or Burn (negative amount,
// passed as a positive magnitude with mint=false) delta at tickIdx,
// following spec.md §4.1's Mint/Burn rules: liquidity_gross grows by
// the magnitude on Mint and shrinks by it on Burn; liquidity_net gains +amount at the lower
// tick and -amount at the upper tick (sign flips for Burn's inverse).
//
// Returns flippedInitialized: true if the tick's initialized state
// changed, so the caller can flip the corresponding Bitmap bit.
func (t *Table) Update(tickIdx int32, amount *uint256.Int, isLower bool, mint bool) (flippedInitialized bool) {
	info, ok := t.ticks[tickIdx]
	if !ok {
		if !mint {
			// Burn referencing a tick this table never minted: the
			// magnitude would underflow LiquidityGross (uint256 wraps
			// rather than erroring). Treat as a no-op instead of
			// fabricating a spuriously huge gross and a stray bitmap bit.
			return false
		}
		info = newInfo()
		t.ticks[tickIdx] = info
	}

	if !mint && amount.Cmp(info.LiquidityGross) > 0 {
		// Burn magnitude exceeds what's on record for this tick; same
		// underflow hazard as the absent-tick case above.
		return false
	}

	if mint {
		info.LiquidityGross.Add(info.LiquidityGross, amount)
	} else {
		info.LiquidityGross.Sub(info.LiquidityGross, amount)
	}

	delta := new(big.Int).SetBytes(amount.Bytes())
	if !isLower {
		delta.Neg(delta)
	}
	if !mint {
		delta.Neg(delta)
	}
	info.LiquidityNet.Add(info.LiquidityNet, delta)

	wasInitialized := info.Initialized
	info.Initialized = !info.LiquidityGross.IsZero()

	if wasInitialized != info.Initialized {
		if !info.Initialized {
			delete(t.ticks, tickIdx)
		}
		return true
	}
	return false
}

// CrossDelta returns the signed liquidity delta to apply to the pool's
// global liquidity when the current price crosses tickIdx while moving
// in direction zeroForOne (spec.md §4.1 "cross the tick").
func (t *Table) CrossDelta(tickIdx int32, zeroForOne bool) *big.Int {
	info, ok := t.ticks[tickIdx]
	if !ok {
		return new(big.Int)
	}
	net := new(big.Int).Set(info.LiquidityNet)
	if zeroForOne {
		net.Neg(net)
	}
	return net
}
