package tick

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableUpdateMintInitializesAndSetsLiquidityNet(t *testing.T) {
	table := NewTable()
	amount := uint256.NewInt(100)

	flippedLower := table.Update(10, amount, true, true)
	flippedUpper := table.Update(20, amount, false, true)
	assert.True(t, flippedLower)
	assert.True(t, flippedUpper)

	lower := table.Get(10)
	upper := table.Get(20)
	require.NotNil(t, lower)
	require.NotNil(t, upper)
	assert.Equal(t, big.NewInt(100), lower.LiquidityNet)
	assert.Equal(t, big.NewInt(-100), upper.LiquidityNet)
	assert.True(t, lower.Initialized)
	assert.True(t, upper.Initialized)
}

func TestTableUpdateBurnReversesMintAndDeinitializes(t *testing.T) {
	table := NewTable()
	amount := uint256.NewInt(50)

	table.Update(10, amount, true, true)
	flipped := table.Update(10, amount, true, false)
	assert.True(t, flipped)
	assert.Nil(t, table.Get(10), "tick removed once liquidity_gross returns to zero")
}

func TestTableUpdatePartialBurnStaysInitialized(t *testing.T) {
	table := NewTable()
	table.Update(10, uint256.NewInt(100), true, true)
	flipped := table.Update(10, uint256.NewInt(40), true, false)
	assert.False(t, flipped, "partial burn must not flip the bitmap bit")
	info := table.Get(10)
	require.NotNil(t, info)
	assert.Equal(t, uint256.NewInt(60), info.LiquidityGross)
}

func TestTableUpdateBurnOnUnknownTickIsNoOp(t *testing.T) {
	table := NewTable()
	flipped := table.Update(10, uint256.NewInt(50), true, false)
	assert.False(t, flipped)
	assert.Nil(t, table.Get(10), "a burn on a tick never minted must not create a spurious entry")
}

func TestTableUpdateBurnExceedingRecordedGrossIsNoOp(t *testing.T) {
	table := NewTable()
	table.Update(10, uint256.NewInt(40), true, true)
	flipped := table.Update(10, uint256.NewInt(100), true, false)
	assert.False(t, flipped)
	info := table.Get(10)
	require.NotNil(t, info)
	assert.Equal(t, uint256.NewInt(40), info.LiquidityGross, "an over-sized burn must not wrap liquidity_gross")
	assert.True(t, info.Initialized)
}

func TestTableCloneIsIndependent(t *testing.T) {
	table := NewTable()
	table.Update(10, uint256.NewInt(100), true, true)
	clone := table.Clone()
	table.Update(10, uint256.NewInt(50), true, true)

	assert.Equal(t, uint256.NewInt(100), clone.Get(10).LiquidityGross)
	assert.Equal(t, uint256.NewInt(150), table.Get(10).LiquidityGross)
}

func TestCrossDeltaFlipsSignForZeroForOne(t *testing.T) {
	table := NewTable()
	table.Update(10, uint256.NewInt(100), true, true)

	deltaOneForZero := table.CrossDelta(10, false)
	deltaZeroForOne := table.CrossDelta(10, true)
	assert.Equal(t, big.NewInt(100), deltaOneForZero)
	assert.Equal(t, big.NewInt(-100), deltaZeroForOne)
}

func TestCrossDeltaUnknownTickIsZero(t *testing.T) {
	table := NewTable()
	assert.Equal(t, new(big.Int), table.CrossDelta(999, true))
}
