package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// FeeProbe captures one previewDeposit/previewRedeem sample taken by
// the reader: the probed input size and the signed delta between the
// fee-less conversion and the provider's preview at that size
// (positive means the vault charges a fee). Two probes per direction,
// at two different sizes, let the engine fit a constant per-unit fee
// without modeling the vault's own fee formula (spec.md §3).
type FeeProbe struct {
	AmountIn *big.Int
	FeeDelta *big.Int
}

func zeroProbe() FeeProbe {
	return FeeProbe{AmountIn: new(big.Int), FeeDelta: new(big.Int)}
}

func (f FeeProbe) clone() FeeProbe {
	return FeeProbe{AmountIn: new(big.Int).Set(f.AmountIn), FeeDelta: new(big.Int).Set(f.FeeDelta)}
}

// Vault4626Pool models an ERC-4626 tokenized vault as a two-sided
// pool between its underlying asset and its share token, priced by
// the vault's share-to-asset exchange rate (spec.md §3, §4.1).
type Vault4626Pool struct {
	addr        common.Address
	Asset       token.Token
	Share       token.Token
	TotalAssets *big.Int
	TotalSupply *big.Int

	// Fee-delta probes populated by read_static (spec.md §3): two
	// deposit-direction samples and two redeem-direction samples, used
	// to infer a linear deposit/withdraw fee model.
	DepositProbeSmall FeeProbe
	DepositProbeLarge FeeProbe
	RedeemProbeSmall  FeeProbe
	RedeemProbeLarge  FeeProbe
}

// NewVault4626Pool constructs an empty shell, as produced by a
// Factory's create_pool_shell.
func NewVault4626Pool(addr common.Address, asset, share token.Token) *Vault4626Pool {
	return &Vault4626Pool{
		addr:              addr,
		Asset:             asset,
		Share:             share,
		TotalAssets:       new(big.Int),
		TotalSupply:       new(big.Int),
		DepositProbeSmall: zeroProbe(),
		DepositProbeLarge: zeroProbe(),
		RedeemProbeSmall:  zeroProbe(),
		RedeemProbeLarge:  zeroProbe(),
	}
}

func (p *Vault4626Pool) Address() common.Address { return p.addr }
func (p *Vault4626Pool) Variant() Variant         { return VariantVault4626 }
func (p *Vault4626Pool) Tokens() []token.Token    { return []token.Token{p.Asset, p.Share} }

func (p *Vault4626Pool) SyncEvents() []common.Hash {
	return []common.Hash{TopicERC4626Deposit, TopicERC4626Withdraw}
}

// Sync applies Deposit(address caller, address owner, uint256 assets,
// uint256 shares) or Withdraw(address caller, address receiver,
// address owner, uint256 assets, uint256 shares): both non-indexed
// data tails are (assets, shares). Deposit adds both amounts to
// total_assets and total_supply; Withdraw subtracts them, flooring
// each total at zero.
func (p *Vault4626Pool) Sync(log evmlog.Log) error {
	var assetsWordIdx, sharesWordIdx int
	var sign int64

	switch log.Topic0() {
	case TopicERC4626Deposit:
		assetsWordIdx, sharesWordIdx, sign = 0, 1, 1
	case TopicERC4626Withdraw:
		assetsWordIdx, sharesWordIdx, sign = 0, 1, -1
	default:
		return NewLogMismatch(p.addr, log.Topic0())
	}

	assetsW, ok1 := word(log.Data, assetsWordIdx)
	sharesW, ok2 := word(log.Data, sharesWordIdx)
	if !ok1 || !ok2 {
		return NewPopulateError(p.addr, "short Deposit/Withdraw log data")
	}
	assets := unsignedFromWord(assetsW)
	shares := unsignedFromWord(sharesW)

	if sign > 0 {
		p.TotalAssets.Add(p.TotalAssets, assets)
		p.TotalSupply.Add(p.TotalSupply, shares)
	} else {
		p.TotalAssets.Sub(p.TotalAssets, assets)
		p.TotalSupply.Sub(p.TotalSupply, shares)
		if p.TotalAssets.Sign() < 0 {
			p.TotalAssets.SetInt64(0)
		}
		if p.TotalSupply.Sign() < 0 {
			p.TotalSupply.SetInt64(0)
		}
	}
	return nil
}

func (p *Vault4626Pool) direction(base, quote common.Address) (depositing bool, err error) {
	switch {
	case base == p.Asset.Address && quote == p.Share.Address:
		return true, nil
	case base == p.Share.Address && quote == p.Asset.Address:
		return false, nil
	default:
		return false, ErrInvalidInput
	}
}

// Price returns the vault's share price: total_assets/total_supply
// when quoting shares in assets, inverted otherwise. An empty vault
// (supply zero) reports the ERC-4626 virtual 1:1 rate.
func (p *Vault4626Pool) Price(base, quote common.Address) (float64, error) {
	depositing, err := p.direction(base, quote)
	if err != nil {
		return 0, err
	}
	if p.TotalSupply.Sign() == 0 {
		return 1.0, nil
	}
	num := new(big.Float).SetInt(new(big.Int).Mul(p.TotalAssets, pow10(p.Share.Decimals)))
	den := new(big.Float).SetInt(new(big.Int).Mul(p.TotalSupply, pow10(p.Asset.Decimals)))
	sharePriceInAssets := new(big.Float).Quo(num, den)
	var out *big.Float
	if depositing {
		out = new(big.Float).Quo(big.NewFloat(1), sharePriceInAssets)
	} else {
		out = sharePriceInAssets
	}
	f, _ := out.Float64()
	return f, nil
}

// SimulateSwap implements deposit (asset -> share: shares =
// assets*total_supply/total_assets) and redeem (share -> asset:
// assets = shares*total_assets/total_supply) per spec.md §4.1's vault
// variant, falling back to the 1:1 virtual rate for an empty vault.
// The fee-less conversion is then clamped to the lower of itself and
// the provider's preview, the preview approximated by the constant
// per-unit fee fitted from the direction's two probes (spec.md §3).
func (p *Vault4626Pool) SimulateSwap(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	depositing, err := p.direction(base, quote)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return SwapResult{AmountIn: big.NewInt(0), AmountOut: big.NewInt(0)}, nil
	}
	if amountIn.Sign() < 0 {
		return SwapResult{}, ErrInvalidInput
	}

	var out *big.Int
	if p.TotalSupply.Sign() == 0 || p.TotalAssets.Sign() == 0 {
		out = new(big.Int).Set(amountIn)
	} else if depositing {
		out = new(big.Int).Mul(amountIn, p.TotalSupply)
		out.Quo(out, p.TotalAssets)
	} else {
		out = new(big.Int).Mul(amountIn, p.TotalAssets)
		out.Quo(out, p.TotalSupply)
	}

	small, large := p.RedeemProbeSmall, p.RedeemProbeLarge
	if depositing {
		small, large = p.DepositProbeSmall, p.DepositProbeLarge
	}
	if rate := perUnitFee(small, large); rate != nil && rate.Sign() > 0 {
		feeAmt, _ := new(big.Float).Mul(rate, new(big.Float).SetInt(amountIn)).Int(nil)
		preview := new(big.Int).Sub(out, feeAmt)
		if preview.Sign() < 0 {
			preview = big.NewInt(0)
		}
		if preview.Cmp(out) < 0 {
			out = preview
		}
	}
	return SwapResult{AmountIn: new(big.Int).Set(amountIn), AmountOut: out}, nil
}

// perUnitFee fits a constant per-unit fee from two probes taken at
// different sizes in the same direction, returning nil when there is
// not enough information (unpopulated probes, or a zero-size probe
// with nothing to compare against). A negative fit (the provider's
// preview exceeding the fee-less conversion) clamps to zero rather
// than producing a bonus.
func perUnitFee(small, large FeeProbe) *big.Float {
	if small.AmountIn == nil || small.FeeDelta == nil || large.AmountIn == nil || large.FeeDelta == nil {
		return nil
	}
	sizeDelta := new(big.Int).Sub(large.AmountIn, small.AmountIn)
	if sizeDelta.Sign() == 0 {
		if small.AmountIn.Sign() == 0 {
			return nil
		}
		rate := new(big.Float).Quo(new(big.Float).SetInt(small.FeeDelta), new(big.Float).SetInt(small.AmountIn))
		if rate.Sign() < 0 {
			return big.NewFloat(0)
		}
		return rate
	}
	feeDelta := new(big.Int).Sub(large.FeeDelta, small.FeeDelta)
	rate := new(big.Float).Quo(new(big.Float).SetInt(feeDelta), new(big.Float).SetInt(sizeDelta))
	if rate.Sign() < 0 {
		return big.NewFloat(0)
	}
	return rate
}

// SimulateSwapMut performs SimulateSwap and commits the resulting
// deposit/redeem to total_assets and total_supply.
func (p *Vault4626Pool) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (SwapResult, error) {
	depositing, err := p.direction(base, quote)
	if err != nil {
		return SwapResult{}, err
	}
	res, err := p.SimulateSwap(base, quote, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return res, nil
	}
	if depositing {
		p.TotalAssets.Add(p.TotalAssets, amountIn)
		p.TotalSupply.Add(p.TotalSupply, res.AmountOut)
	} else {
		p.TotalSupply.Sub(p.TotalSupply, amountIn)
		p.TotalAssets.Sub(p.TotalAssets, res.AmountOut)
	}
	return res, nil
}

func (p *Vault4626Pool) Snapshot() Pool {
	return &Vault4626Pool{
		addr:              p.addr,
		Asset:             p.Asset,
		Share:             p.Share,
		TotalAssets:       new(big.Int).Set(p.TotalAssets),
		TotalSupply:       new(big.Int).Set(p.TotalSupply),
		DepositProbeSmall: p.DepositProbeSmall.clone(),
		DepositProbeLarge: p.DepositProbeLarge.clone(),
		RedeemProbeSmall:  p.RedeemProbeSmall.clone(),
		RedeemProbeLarge:  p.RedeemProbeLarge.clone(),
	}
}

func (p *Vault4626Pool) Restore(snapshot Pool) {
	s, ok := snapshot.(*Vault4626Pool)
	if !ok || s.addr != p.addr {
		return
	}
	p.TotalAssets = new(big.Int).Set(s.TotalAssets)
	p.TotalSupply = new(big.Int).Set(s.TotalSupply)
	p.DepositProbeSmall = s.DepositProbeSmall.clone()
	p.DepositProbeLarge = s.DepositProbeLarge.clone()
	p.RedeemProbeSmall = s.RedeemProbeSmall.clone()
	p.RedeemProbeLarge = s.RedeemProbeLarge.clone()
}

var _ Pool = (*Vault4626Pool)(nil)
