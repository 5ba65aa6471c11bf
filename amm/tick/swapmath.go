package tick

import (
	"math/big"

	"github.com/holiman/uint256"
)

// FeeDenominator is the denominator fee tiers are expressed against
// (a 3000 fee tier means 3000/1e6 = 0.3%), matching Uniswap V3's
// pips convention.
const FeeDenominator = 1_000_000

func toBig(x *uint256.Int) *big.Int { return x.ToBig() }

func fromBig(x *big.Int) *uint256.Int {
	v, _ := uint256.FromBig(x)
	return v
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// GetAmount0Delta returns the amount of token0 required to move the
// price between sqrtA and sqrtB at constant liquidity. Go's arbitrary
// precision big.Int lets this compute the exact rational result in one
// step rather than the chunked mulDiv the original Solidity needs to
// avoid 256-bit overflow (spec.md §4.1 "exact integer (256- or 512-bit
// intermediate) math").
func GetAmount0Delta(sqrtA, sqrtB *uint256.Int, liquidity *uint256.Int, roundUp bool) *big.Int {
	a, b := toBig(sqrtA), toBig(sqrtB)
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if a.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(toBig(liquidity), new(big.Int).Sub(b, a))
	num.Mul(num, Q96)
	den := new(big.Int).Mul(a, b)
	if roundUp {
		return ceilDiv(num, den)
	}
	return new(big.Int).Quo(num, den)
}

// GetAmount1Delta returns the amount of token1 required to move the
// price between sqrtA and sqrtB at constant liquidity.
func GetAmount1Delta(sqrtA, sqrtB *uint256.Int, liquidity *uint256.Int, roundUp bool) *big.Int {
	a, b := toBig(sqrtA), toBig(sqrtB)
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	num := new(big.Int).Mul(toBig(liquidity), new(big.Int).Sub(b, a))
	if roundUp {
		return ceilDiv(num, Q96)
	}
	return new(big.Int).Quo(num, Q96)
}

// NextSqrtPriceFromAmount0RoundingUp computes the new sqrt price after
// adding amount of token0 at constant liquidity (zeroForOne direction,
// price decreases).
func NextSqrtPriceFromAmount0RoundingUp(sqrtP *uint256.Int, liquidity *uint256.Int, amount *big.Int) *uint256.Int {
	if amount.Sign() == 0 {
		return new(uint256.Int).Set(sqrtP)
	}
	l := toBig(liquidity)
	p := toBig(sqrtP)
	numerator1 := new(big.Int).Mul(l, Q96)
	product := new(big.Int).Mul(amount, p)
	denominator := new(big.Int).Add(numerator1, product)
	if denominator.Cmp(numerator1) >= 0 {
		return fromBig(ceilDiv(new(big.Int).Mul(numerator1, p), denominator))
	}
	// fallback path for the (rare, near-MaxSqrtRatio) overflowing case.
	denom := new(big.Int).Add(new(big.Int).Quo(numerator1, p), amount)
	return fromBig(ceilDiv(numerator1, denom))
}

// NextSqrtPriceFromAmount1RoundingDown computes the new sqrt price
// after adding amount of token1 at constant liquidity (price increases).
func NextSqrtPriceFromAmount1RoundingDown(sqrtP *uint256.Int, liquidity *uint256.Int, amount *big.Int) *uint256.Int {
	quotient := new(big.Int).Quo(new(big.Int).Mul(amount, Q96), toBig(liquidity))
	return fromBig(new(big.Int).Add(toBig(sqrtP), quotient))
}

// NextSqrtPriceFromInput dispatches to the amount0/amount1 formula
// based on swap direction (spec.md §4.1 step 2, computing the step's
// candidate next price before clamping to the tick/limit target).
func NextSqrtPriceFromInput(sqrtP *uint256.Int, liquidity *uint256.Int, amountIn *big.Int, zeroForOne bool) *uint256.Int {
	if zeroForOne {
		return NextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amountIn)
	}
	return NextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amountIn)
}

// SwapStep is the outcome of advancing the price by at most one
// tick-crossing, per spec.md §4.1 step 2.
type SwapStep struct {
	SqrtRatioNext *uint256.Int
	AmountIn      *big.Int
	AmountOut     *big.Int
	FeeAmount     *big.Int
}

// ComputeSwapStep computes one step of the exact-input V3 swap loop:
// how far the price moves toward sqrtRatioTarget given amountRemaining
// of input and the pool's fee, following the same structure as
// Uniswap V3's SwapMath.computeSwapStep (exact-input branch only, since
// spec.md §4.1 only specifies simulate_swap by input amount).
func ComputeSwapStep(sqrtRatioCurrent, sqrtRatioTarget *uint256.Int, liquidity *uint256.Int, amountRemaining *big.Int, feePips uint32, zeroForOne bool) SwapStep {
	feeDen := big.NewInt(FeeDenominator)
	feeP := big.NewInt(int64(feePips))

	amountRemainingLessFee := new(big.Int).Mul(amountRemaining, new(big.Int).Sub(feeDen, feeP))
	amountRemainingLessFee.Quo(amountRemainingLessFee, feeDen)

	var amountIn *big.Int
	if zeroForOne {
		amountIn = GetAmount0Delta(sqrtRatioTarget, sqrtRatioCurrent, liquidity, true)
	} else {
		amountIn = GetAmount1Delta(sqrtRatioCurrent, sqrtRatioTarget, liquidity, true)
	}

	var sqrtRatioNext *uint256.Int
	reachedTarget := amountRemainingLessFee.Cmp(amountIn) >= 0
	if reachedTarget {
		sqrtRatioNext = sqrtRatioTarget
	} else {
		sqrtRatioNext = NextSqrtPriceFromInput(sqrtRatioCurrent, liquidity, amountRemainingLessFee, zeroForOne)
	}

	max := sqrtRatioNext.Eq(sqrtRatioTarget)

	var amountOut *big.Int
	if zeroForOne {
		if !max {
			amountIn = GetAmount0Delta(sqrtRatioNext, sqrtRatioCurrent, liquidity, true)
		}
		amountOut = GetAmount1Delta(sqrtRatioNext, sqrtRatioCurrent, liquidity, false)
	} else {
		if !max {
			amountIn = GetAmount1Delta(sqrtRatioCurrent, sqrtRatioNext, liquidity, true)
		}
		amountOut = GetAmount0Delta(sqrtRatioCurrent, sqrtRatioNext, liquidity, false)
	}

	var feeAmount *big.Int
	if !max {
		feeAmount = new(big.Int).Sub(amountRemaining, amountIn)
		if feeAmount.Sign() < 0 {
			feeAmount = new(big.Int)
		}
	} else {
		num := new(big.Int).Mul(amountIn, feeP)
		feeAmount = ceilDiv(num, new(big.Int).Sub(feeDen, feeP))
	}

	return SwapStep{
		SqrtRatioNext: sqrtRatioNext,
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		FeeAmount:     feeAmount,
	}
}

// SqrtPriceToTick approximates the tick corresponding to a sqrt price
// by binary search over 1.0001^(tick/2) in Q96 fixed point. Used to
// recompute the pool's cached tick when a swap step moves the price
// without crossing an initialized tick (spec.md §4.1 "recompute tick
// from sqrt_price").
func SqrtPriceToTick(sqrtPriceX96 *uint256.Int) int32 {
	lo, hi := MinTick, MaxTick
	target := toBig(sqrtPriceX96)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if toBig(sqrtPriceAtTick(mid)).Cmp(target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo > MinTick {
		lo--
	}
	return lo
}

// sqrtPriceAtTick approximates floor(sqrt(1.0001^tick) * 2^96) with
// big.Float arithmetic at default precision, so its low bits can differ
// from the exact integer value. Through SqrtPriceAtTick it supplies the
// tick-boundary target price of each swap step as well as the tick
// bookkeeping; a pool's stored sqrt price comes from the State Reader
// or from Swap events, not from this helper.
func sqrtPriceAtTick(t int32) *uint256.Int {
	ratio := bigPow1_0001(t)
	sqrt := new(big.Float).Sqrt(ratio)
	sqrt.Mul(sqrt, new(big.Float).SetInt(Q96))
	out, _ := sqrt.Int(nil)
	v, _ := uint256.FromBig(out)
	return v
}

// SqrtPriceAtTick is the exported form of sqrtPriceAtTick, used by
// callers that need a tick-crossing loop's per-step target price
// rather than a boundary-clamped MinSqrtRatio/MaxSqrtRatio.
func SqrtPriceAtTick(t int32) *uint256.Int {
	return sqrtPriceAtTick(t)
}

func bigPow1_0001(t int32) *big.Float {
	base := big.NewFloat(1.0001)
	neg := t < 0
	if neg {
		t = -t
	}
	result := big.NewFloat(1)
	b := new(big.Float).Copy(base)
	e := uint32(t)
	for e > 0 {
		if e&1 == 1 {
			result.Mul(result, b)
		}
		b.Mul(b, b)
		e >>= 1
	}
	if neg {
		result.Quo(big.NewFloat(1), result)
	}
	return result
}
