package amm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/statespace/amm/tick"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

func newConcentratedPool() *ConcentratedPool {
	tokenA := token.Token{Address: common.HexToAddress("0xaaaa"), Decimals: 18}
	tokenB := token.Token{Address: common.HexToAddress("0xbbbb"), Decimals: 18}
	return NewConcentratedPool(common.HexToAddress("0xcccc"), tokenA, tokenB, 3000, 60)
}

func wordFromUint(v *uint256.Int) []byte {
	return v.PaddedBytes(32)
}

func wordFromSignedInt(v int64) []byte {
	b := big.NewInt(v)
	out := make([]byte, 32)
	if b.Sign() < 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), 256)
		b = new(big.Int).Add(b, modulus)
	}
	b.FillBytes(out)
	return out
}

func TestConcentratedSyncInitializeSetsSqrtPriceAndTick(t *testing.T) {
	p := newConcentratedPool()
	sqrtPrice := tick.Q96 // price 1.0 in Q64.96, as a *big.Int
	sqrtPriceU256, _ := uint256.FromBig(sqrtPrice)
	data := append(append([]byte{}, wordFromUint(sqrtPriceU256)...), wordFromSignedInt(0)...)

	err := p.Sync(evmlog.Log{Topics: []common.Hash{TopicV3Initialize}, Data: data})
	require.NoError(t, err)
	assert.Equal(t, sqrtPriceU256, p.SqrtPriceX96)
	assert.Equal(t, int32(0), p.CurrentTick)
}

func TestConcentratedMintFlipsBitmapAndSetsLiquidityNet(t *testing.T) {
	p := newConcentratedPool()
	p.CurrentTick = 0
	p.Liquidity = new(uint256.Int)

	lowerTopic := common.BytesToHash(wordFromSignedInt(-60))
	upperTopic := common.BytesToHash(wordFromSignedInt(60))
	// Mint data: (sender, amount, amount0, amount1); amount at word index 1.
	data := make([]byte, 128)
	copy(data[32:64], wordFromUint(uint256.NewInt(1000)))

	err := p.Sync(evmlog.Log{
		Topics: []common.Hash{TopicV3Mint, common.Hash{}, lowerTopic, upperTopic},
		Data:   data,
	})
	require.NoError(t, err)

	lowerCompressed := tick.Compress(-60, p.TickSpacing)
	upperCompressed := tick.Compress(60, p.TickSpacing)
	assert.True(t, p.Bitmap.IsSet(lowerCompressed))
	assert.True(t, p.Bitmap.IsSet(upperCompressed))

	lowerInfo := p.Ticks.Get(-60)
	upperInfo := p.Ticks.Get(60)
	require.NotNil(t, lowerInfo)
	require.NotNil(t, upperInfo)
	assert.False(t, lowerInfo.LiquidityGross.IsZero())
	assert.False(t, upperInfo.LiquidityGross.IsZero())

	// current tick 0 lies within [-60, 60), so global liquidity grows.
	assert.Equal(t, uint256.NewInt(1000), p.Liquidity)
}

func TestConcentratedBitmapBitMatchesLiquidityGrossInvariant(t *testing.T) {
	p := newConcentratedPool()
	lowerTopic := common.BytesToHash(wordFromSignedInt(-60))
	upperTopic := common.BytesToHash(wordFromSignedInt(60))
	mintData := make([]byte, 128)
	copy(mintData[32:64], wordFromUint(uint256.NewInt(500)))
	require.NoError(t, p.Sync(evmlog.Log{
		Topics: []common.Hash{TopicV3Mint, common.Hash{}, lowerTopic, upperTopic},
		Data:   mintData,
	}))

	// Burn the full amount back out; both ticks should de-initialize.
	burnData := make([]byte, 96)
	copy(burnData[0:32], wordFromUint(uint256.NewInt(500)))
	require.NoError(t, p.Sync(evmlog.Log{
		Topics: []common.Hash{TopicV3Burn, common.Hash{}, lowerTopic, upperTopic},
		Data:   burnData,
	}))

	lowerCompressed := tick.Compress(-60, p.TickSpacing)
	upperCompressed := tick.Compress(60, p.TickSpacing)
	assert.False(t, p.Bitmap.IsSet(lowerCompressed))
	assert.False(t, p.Bitmap.IsSet(upperCompressed))
	assert.Nil(t, p.Ticks.Get(-60))
	assert.Nil(t, p.Ticks.Get(60))
}

func TestConcentratedSwapNeverExceedsSqrtRatioBounds(t *testing.T) {
	p := newConcentratedPool()
	p.SqrtPriceX96, _ = uint256.FromBig(tick.Q96)
	p.Liquidity = uint256.NewInt(1_000_000_000)
	p.CurrentTick = 0

	res, err := p.SimulateSwap(p.TokenA.Address, p.TokenB.Address, big.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	assert.True(t, res.AmountOut.Sign() >= 0)

	_, err = p.SimulateSwapMut(p.TokenA.Address, p.TokenB.Address, big.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	assert.True(t, p.SqrtPriceX96.Cmp(tick.MinSqrtRatio) >= 0)
	assert.True(t, p.SqrtPriceX96.Cmp(tick.MaxSqrtRatio) <= 0)
}

func TestConcentratedZeroAmountSwapIsNoOp(t *testing.T) {
	p := newConcentratedPool()
	p.SqrtPriceX96, _ = uint256.FromBig(tick.Q96)
	p.Liquidity = uint256.NewInt(1_000_000_000)

	res, err := p.SimulateSwap(p.TokenA.Address, p.TokenB.Address, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.AmountOut.Sign())
	assert.Equal(t, 0, res.AmountIn.Sign())
}

func TestConcentratedSnapshotRestoreDeepCopiesTicksAndBitmap(t *testing.T) {
	p := newConcentratedPool()
	lowerTopic := common.BytesToHash(wordFromSignedInt(-60))
	upperTopic := common.BytesToHash(wordFromSignedInt(60))
	mintData := make([]byte, 128)
	copy(mintData[32:64], wordFromUint(uint256.NewInt(500)))
	require.NoError(t, p.Sync(evmlog.Log{
		Topics: []common.Hash{TopicV3Mint, common.Hash{}, lowerTopic, upperTopic},
		Data:   mintData,
	}))

	snap := p.Snapshot()

	moreData := make([]byte, 128)
	copy(moreData[32:64], wordFromUint(uint256.NewInt(250)))
	require.NoError(t, p.Sync(evmlog.Log{
		Topics: []common.Hash{TopicV3Mint, common.Hash{}, lowerTopic, upperTopic},
		Data:   moreData,
	}))
	assert.NotEqual(t, snap.(*ConcentratedPool).Ticks.Get(-60).LiquidityGross, p.Ticks.Get(-60).LiquidityGross)

	p.Restore(snap)
	assert.Equal(t, uint256.NewInt(500), p.Ticks.Get(-60).LiquidityGross)
}
