package amm

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// WeightedPool models a Balancer-V1-style N-token weighted pool:
// balances and denormalized weights per token, priced by the weighted
// constant-product invariant (spec.md §3, §4.1).
type WeightedPool struct {
	addr     common.Address
	Tokens_  []token.Token
	Balances []*big.Int
	Weights  []*big.Int // denormalized; only the pairwise ratio matters
	SwapFeeBps uint32

	// NeedsResync is set when an admin LOG_CALL (rebind, setSwapFee, or
	// any other Balancer-V1 controller call this engine does not
	// decode) is observed, and cleared once the reader has repopulated
	// the pool via SetStatic/SetBalances. Until cleared, Weights,
	// SwapFeeBps, and Balances may no longer reflect chain state
	// (spec.md §9: "mark weighted pools as periodically resynced via
	// reader" for balance/weight-changing ops the sync events don't
	// cover).
	NeedsResync bool
}

// NewWeightedPool constructs a pool with tokens and weights set but
// balances zeroed. Factories build address-only shells with
// NewWeightedPoolShell instead.
func NewWeightedPool(addr common.Address, tokens []token.Token, weights []*big.Int, swapFeeBps uint32) *WeightedPool {
	balances := make([]*big.Int, len(tokens))
	for i := range balances {
		balances[i] = new(big.Int)
	}
	return &WeightedPool{
		addr:       addr,
		Tokens_:    tokens,
		Balances:   balances,
		Weights:    weights,
		SwapFeeBps: swapFeeBps,
	}
}

// NewWeightedPoolShell constructs a pool shell with only its address
// known; a Factory cannot recover a Balancer-V1 pool's token list,
// weights, or balances from LOG_NEW_POOL alone. The Batch State
// Reader populates them via SetStatic/SetBalances during Discovery.
func NewWeightedPoolShell(addr common.Address) *WeightedPool {
	return &WeightedPool{addr: addr}
}

// SetStatic installs the token list, denormalized weights, and swap
// fee read from chain during Discovery's read_static phase, and clears
// NeedsResync since this is exactly the resync a LOG_CALL requested.
func (p *WeightedPool) SetStatic(tokens []token.Token, weights []*big.Int, swapFeeBps uint32) {
	p.Tokens_ = tokens
	p.Weights = weights
	p.SwapFeeBps = swapFeeBps
	p.Balances = make([]*big.Int, len(tokens))
	for i := range p.Balances {
		p.Balances[i] = new(big.Int)
	}
	p.NeedsResync = false
}

// SetBalances installs the per-token balances read during Discovery's
// read_dynamic phase and clears NeedsResync. len(balances) must equal
// len(Tokens()).
func (p *WeightedPool) SetBalances(balances []*big.Int) {
	p.Balances = balances
	p.NeedsResync = false
}

func (p *WeightedPool) Address() common.Address { return p.addr }
func (p *WeightedPool) Variant() Variant         { return VariantWeighted }
func (p *WeightedPool) Tokens() []token.Token    { return p.Tokens_ }

func (p *WeightedPool) SyncEvents() []common.Hash {
	return []common.Hash{TopicBalancerLogSwap, TopicBalancerLogCall}
}

func (p *WeightedPool) indexOf(addr common.Address) int {
	for i, t := range p.Tokens_ {
		if t.Address == addr {
			return i
		}
	}
	return -1
}

// Sync applies LOG_SWAP(caller indexed, tokenIn indexed, tokenOut
// indexed, tokenAmountIn, tokenAmountOut): balances move by the
// traded amounts. LOG_CALL (admin reweight / swap-fee changes) is
// acknowledged but not decoded: Balancer V1's LOG_CALL payload is the
// raw calldata of an arbitrary admin function, so it is flagged via
// NeedsResync instead, for the reader to pick up on its next pass.
func (p *WeightedPool) Sync(log evmlog.Log) error {
	switch log.Topic0() {
	case TopicBalancerLogCall:
		p.NeedsResync = true
		return nil
	case TopicBalancerLogSwap:
	default:
		return NewLogMismatch(p.addr, log.Topic0())
	}

	if len(log.Topics) < 4 {
		return NewPopulateError(p.addr, "missing indexed tokens on LOG_SWAP")
	}
	tokenIn := addressFromTopic(log.Topics[2])
	tokenOut := addressFromTopic(log.Topics[3])
	inIdx, outIdx := p.indexOf(tokenIn), p.indexOf(tokenOut)
	if inIdx < 0 || outIdx < 0 {
		return NewPopulateError(p.addr, "LOG_SWAP token not in pool")
	}

	w0, ok0 := word(log.Data, 0)
	w1, ok1 := word(log.Data, 1)
	if !ok0 || !ok1 {
		return NewPopulateError(p.addr, "short LOG_SWAP log data")
	}
	amountIn := unsignedFromWord(w0)
	amountOut := unsignedFromWord(w1)

	p.Balances[inIdx].Add(p.Balances[inIdx], amountIn)
	p.Balances[outIdx].Sub(p.Balances[outIdx], amountOut)
	if p.Balances[outIdx].Sign() < 0 {
		p.Balances[outIdx].SetInt64(0)
	}
	return nil
}

func (p *WeightedPool) pairIndices(base, quote common.Address) (inIdx, outIdx int, err error) {
	inIdx, outIdx = p.indexOf(base), p.indexOf(quote)
	if inIdx < 0 || outIdx < 0 || inIdx == outIdx {
		return 0, 0, ErrInvalidInput
	}
	return inIdx, outIdx, nil
}

// spotPrice implements Balancer V1's spot-price formula:
// (balanceIn/weightIn) / (balanceOut/weightOut), before fee.
func (p *WeightedPool) spotPrice(inIdx, outIdx int) *big.Float {
	bIn := new(big.Float).SetInt(p.Balances[inIdx])
	wIn := new(big.Float).SetInt(p.Weights[inIdx])
	bOut := new(big.Float).SetInt(p.Balances[outIdx])
	wOut := new(big.Float).SetInt(p.Weights[outIdx])

	ratioIn := new(big.Float).Quo(bIn, wIn)
	ratioOut := new(big.Float).Quo(bOut, wOut)
	return new(big.Float).Quo(ratioIn, ratioOut)
}

// Price returns the instantaneous price of one unit of base in units
// of quote, adjusted for token decimals.
func (p *WeightedPool) Price(base, quote common.Address) (float64, error) {
	inIdx, outIdx, err := p.pairIndices(base, quote)
	if err != nil {
		return 0, err
	}
	if p.Balances[inIdx].Sign() == 0 || p.Balances[outIdx].Sign() == 0 {
		return 0, ErrInvalidInput
	}
	sp := p.spotPrice(outIdx, inIdx)
	decAdj := new(big.Float).SetInt(pow10(p.Tokens_[outIdx].Decimals))
	decAdj.Quo(decAdj, new(big.Float).SetInt(pow10(p.Tokens_[inIdx].Decimals)))
	sp.Quo(sp, decAdj)
	f, _ := sp.Float64()
	return f, nil
}

// SimulateSwap implements Balancer V1's outGivenIn formula:
//
//	amountOut = balanceOut * (1 - (balanceIn / (balanceIn + amountInAfterFee)) ^ (weightIn/weightOut))
//
// computed in float64 since the weight ratio exponent is generally
// irrational; Balancer's own implementation approximates the same
// power via a fixed-point series for the same reason.
func (p *WeightedPool) SimulateSwap(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	inIdx, outIdx, err := p.pairIndices(base, quote)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return SwapResult{AmountIn: big.NewInt(0), AmountOut: big.NewInt(0)}, nil
	}
	if amountIn.Sign() < 0 || p.Balances[inIdx].Sign() == 0 || p.Balances[outIdx].Sign() == 0 {
		return SwapResult{}, ErrInvalidInput
	}

	feeMultiplier := new(big.Int).Sub(big.NewInt(10000), big.NewInt(int64(p.SwapFeeBps)))
	amountInAfterFee := new(big.Int).Mul(amountIn, feeMultiplier)
	amountInAfterFee.Quo(amountInAfterFee, big.NewInt(10000))

	balanceIn, _ := new(big.Float).SetInt(p.Balances[inIdx]).Float64()
	balanceOut, _ := new(big.Float).SetInt(p.Balances[outIdx]).Float64()
	afterFee, _ := new(big.Float).SetInt(amountInAfterFee).Float64()
	weightIn, _ := new(big.Float).SetInt(p.Weights[inIdx]).Float64()
	weightOut, _ := new(big.Float).SetInt(p.Weights[outIdx]).Float64()

	base_ := balanceIn / (balanceIn + afterFee)
	exp := weightIn / weightOut
	out := balanceOut * (1 - math.Pow(base_, exp))
	if out < 0 || math.IsNaN(out) {
		return SwapResult{}, ErrArithmeticOverflow
	}

	outInt, _ := big.NewFloat(out).Int(nil)
	return SwapResult{AmountIn: new(big.Int).Set(amountIn), AmountOut: outInt}, nil
}

// SimulateSwapMut performs SimulateSwap and commits the resulting
// balance changes.
func (p *WeightedPool) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	res, err := p.SimulateSwap(base, quote, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return res, nil
	}
	inIdx, outIdx, _ := p.pairIndices(base, quote)
	p.Balances[inIdx].Add(p.Balances[inIdx], amountIn)
	p.Balances[outIdx].Sub(p.Balances[outIdx], res.AmountOut)
	return res, nil
}

func (p *WeightedPool) Snapshot() Pool {
	balances := make([]*big.Int, len(p.Balances))
	for i, b := range p.Balances {
		balances[i] = new(big.Int).Set(b)
	}
	weights := make([]*big.Int, len(p.Weights))
	for i, w := range p.Weights {
		weights[i] = new(big.Int).Set(w)
	}
	tokens := make([]token.Token, len(p.Tokens_))
	copy(tokens, p.Tokens_)
	return &WeightedPool{
		addr:        p.addr,
		Tokens_:     tokens,
		Balances:    balances,
		Weights:     weights,
		SwapFeeBps:  p.SwapFeeBps,
		NeedsResync: p.NeedsResync,
	}
}

func (p *WeightedPool) Restore(snapshot Pool) {
	s, ok := snapshot.(*WeightedPool)
	if !ok || s.addr != p.addr {
		return
	}
	p.Balances = make([]*big.Int, len(s.Balances))
	for i, b := range s.Balances {
		p.Balances[i] = new(big.Int).Set(b)
	}
	p.Weights = make([]*big.Int, len(s.Weights))
	for i, w := range s.Weights {
		p.Weights[i] = new(big.Int).Set(w)
	}
	p.SwapFeeBps = s.SwapFeeBps
	p.NeedsResync = s.NeedsResync
}

var _ Pool = (*WeightedPool)(nil)
