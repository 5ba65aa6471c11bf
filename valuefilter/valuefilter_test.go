package valuefilter

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/registry"
	"github.com/luxfi/statespace/token"
)

func tok(addr string, decimals uint8) token.Token {
	return token.Token{Address: common.HexToAddress(addr), Decimals: decimals}
}

func TestRunRetainsDirectlyPricedHighLiquidityPool(t *testing.T) {
	reg := registry.New()
	ref := tok("0x7ef", 18)
	weth := tok("0x3e7", 18)
	p := amm.NewConstantProductPool(common.HexToAddress("0x1"), ref, weth, 30)
	p.ReserveA = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	p.ReserveB = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	require.NoError(t, reg.Insert(p))

	f := New(ref.Address, big.NewFloat(1))
	result := f.Run(reg)
	assert.Equal(t, 1, result.Retained)
	assert.Empty(t, result.Removed)
	assert.NotNil(t, reg.Get(p.Address()))
}

func TestRunRemovesPoolBelowThreshold(t *testing.T) {
	reg := registry.New()
	ref := tok("0x7ef", 18)
	dust := tok("0xd057", 18)
	p := amm.NewConstantProductPool(common.HexToAddress("0x1"), ref, dust, 30)
	p.ReserveA = big.NewInt(1)
	p.ReserveB = big.NewInt(1)
	require.NoError(t, reg.Insert(p))

	f := New(ref.Address, big.NewFloat(1_000_000))
	result := f.Run(reg)
	assert.Equal(t, 0, result.Retained)
	assert.Contains(t, result.Removed, p.Address())
	assert.Nil(t, reg.Get(p.Address()))
}

func TestRunPricesThroughOneIntermediateHop(t *testing.T) {
	reg := registry.New()
	ref := tok("0x7ef", 18)
	mid := tok("0x3d", 18)
	leaf := tok("0x1eaf", 18)

	refMidPool := amm.NewConstantProductPool(common.HexToAddress("0x1"), ref, mid, 30)
	refMidPool.ReserveA = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	refMidPool.ReserveB = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	require.NoError(t, reg.Insert(refMidPool))

	midLeafPool := amm.NewConstantProductPool(common.HexToAddress("0x2"), mid, leaf, 30)
	midLeafPool.ReserveA = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	midLeafPool.ReserveB = new(big.Int).Mul(big.NewInt(1_000), big.NewInt(1e18))
	require.NoError(t, reg.Insert(midLeafPool))

	f := New(ref.Address, big.NewFloat(1))
	result := f.Run(reg)
	assert.Equal(t, 2, result.Retained)
}

func TestRunDropsUnpriceableConcentratedPoolCleanly(t *testing.T) {
	reg := registry.New()
	ref := tok("0x7ef", 18)
	other := tok("0x07e", 18)
	cp := amm.NewConcentratedPool(common.HexToAddress("0x1"), ref, other, 3000, 60)
	require.NoError(t, reg.Insert(cp))

	f := New(ref.Address, big.NewFloat(1))
	result := f.Run(reg)
	// A concentrated-liquidity pool's reserve-based liquidity estimate
	// is always nil (tokenAmount returns nil for this variant), so it
	// is dropped as unpriceable rather than misclassified as having
	// zero liquidity.
	assert.Equal(t, 0, result.Retained)
	assert.Contains(t, result.Removed, cp.Address())
}
