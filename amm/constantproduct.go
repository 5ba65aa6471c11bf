package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// ConstantProductPool models a Uniswap-V2-family pair: invariant
// x*y=k over two reserves (spec.md §3, §4.1).
type ConstantProductPool struct {
	addr      common.Address
	TokenA    token.Token
	TokenB    token.Token
	ReserveA  *big.Int // u112
	ReserveB  *big.Int // u112
	FeeBps    uint32   // basis points out of 10000, per-factory
}

// NewConstantProductPool constructs an empty shell with only the
// immutable fields set, as produced by a Factory's create_pool_shell.
func NewConstantProductPool(addr common.Address, a, b token.Token, feeBps uint32) *ConstantProductPool {
	return &ConstantProductPool{
		addr:     addr,
		TokenA:   a,
		TokenB:   b,
		ReserveA: new(big.Int),
		ReserveB: new(big.Int),
		FeeBps:   feeBps,
	}
}

func (p *ConstantProductPool) Address() common.Address { return p.addr }
func (p *ConstantProductPool) Variant() Variant         { return VariantConstantProduct }
func (p *ConstantProductPool) Tokens() []token.Token    { return []token.Token{p.TokenA, p.TokenB} }

func (p *ConstantProductPool) SyncEvents() []common.Hash {
	return []common.Hash{TopicV2Sync}
}

// Sync applies the pair's Sync(uint112 reserve0, uint112 reserve1)
// event, replacing both reserves outright (spec.md §4.1).
func (p *ConstantProductPool) Sync(log evmlog.Log) error {
	if log.Topic0() != TopicV2Sync {
		return NewLogMismatch(p.addr, log.Topic0())
	}
	if len(log.Data) < 64 {
		return NewPopulateError(p.addr, "short Sync log data")
	}
	p.ReserveA = new(big.Int).SetBytes(log.Data[0:32])
	p.ReserveB = new(big.Int).SetBytes(log.Data[32:64])
	return nil
}

func (p *ConstantProductPool) reservesFor(base, quote common.Address) (rIn, rOut *big.Int, tIn, tOut token.Token, err error) {
	switch {
	case base == p.TokenA.Address && quote == p.TokenB.Address:
		return p.ReserveA, p.ReserveB, p.TokenA, p.TokenB, nil
	case base == p.TokenB.Address && quote == p.TokenA.Address:
		return p.ReserveB, p.ReserveA, p.TokenB, p.TokenA, nil
	default:
		return nil, nil, token.Token{}, token.Token{}, ErrInvalidInput
	}
}

// Price returns reserve_quote*10^base_decimals / (reserve_base*10^quote_decimals).
func (p *ConstantProductPool) Price(base, quote common.Address) (float64, error) {
	rIn, rOut, tIn, tOut, err := p.reservesFor(base, quote)
	if err != nil {
		return 0, err
	}
	if rIn.Sign() == 0 {
		return 0, ErrInvalidInput
	}
	num := new(big.Float).SetInt(new(big.Int).Mul(rOut, pow10(tIn.Decimals)))
	den := new(big.Float).SetInt(new(big.Int).Mul(rIn, pow10(tOut.Decimals)))
	out := new(big.Float).Quo(num, den)
	f, _ := out.Float64()
	return f, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// SimulateSwap implements the exact V2 formula from spec.md §3:
// out = Δin*(10000-fee)*R_out / (R_in*10000 + Δin*(10000-fee)).
func (p *ConstantProductPool) SimulateSwap(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	rIn, rOut, _, _, err := p.reservesFor(base, quote)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return SwapResult{AmountIn: big.NewInt(0), AmountOut: big.NewInt(0)}, nil
	}
	if amountIn.Sign() < 0 || rIn.Sign() == 0 || rOut.Sign() == 0 {
		return SwapResult{}, ErrInvalidInput
	}

	feeMultiplier := big.NewInt(int64(10000 - p.FeeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator := new(big.Int).Mul(amountInWithFee, rOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(rIn, big.NewInt(10000)), amountInWithFee)
	if denominator.Sign() == 0 {
		return SwapResult{}, ErrArithmeticOverflow
	}
	out := new(big.Int).Quo(numerator, denominator)
	return SwapResult{AmountIn: new(big.Int).Set(amountIn), AmountOut: out}, nil
}

// SimulateSwapMut performs SimulateSwap and commits
// reserve_in += Δin, reserve_out -= out.
func (p *ConstantProductPool) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	res, err := p.SimulateSwap(base, quote, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return res, nil
	}
	rIn, rOut, _, _, _ := p.reservesFor(base, quote)
	rIn.Add(rIn, amountIn)
	rOut.Sub(rOut, res.AmountOut)
	return res, nil
}

func (p *ConstantProductPool) Snapshot() Pool {
	return &ConstantProductPool{
		addr:     p.addr,
		TokenA:   p.TokenA,
		TokenB:   p.TokenB,
		ReserveA: new(big.Int).Set(p.ReserveA),
		ReserveB: new(big.Int).Set(p.ReserveB),
		FeeBps:   p.FeeBps,
	}
}

func (p *ConstantProductPool) Restore(snapshot Pool) {
	s, ok := snapshot.(*ConstantProductPool)
	if !ok || s.addr != p.addr {
		return
	}
	p.ReserveA = new(big.Int).Set(s.ReserveA)
	p.ReserveB = new(big.Int).Set(s.ReserveB)
	p.FeeBps = s.FeeBps
}

var _ Pool = (*ConstantProductPool)(nil)
