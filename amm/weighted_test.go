package amm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

func newWeightedPool() *WeightedPool {
	tokens := []token.Token{
		{Address: common.HexToAddress("0x1111"), Decimals: 18},
		{Address: common.HexToAddress("0x2222"), Decimals: 18},
	}
	weights := []*big.Int{big.NewInt(50), big.NewInt(50)}
	p := NewWeightedPool(common.HexToAddress("0x3333"), tokens, weights, 30)
	p.Balances[0] = big.NewInt(1_000_000)
	p.Balances[1] = big.NewInt(1_000_000)
	return p
}

func TestWeightedEqualWeightsProduceSpotPriceOne(t *testing.T) {
	p := newWeightedPool()
	price, err := p.Price(p.Tokens_[0].Address, p.Tokens_[1].Address)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, price, 1e-9)
}

func TestWeightedSwapDecreasesOutputBalance(t *testing.T) {
	p := newWeightedPool()
	res, err := p.SimulateSwapMut(p.Tokens_[0].Address, p.Tokens_[1].Address, big.NewInt(10_000))
	require.NoError(t, err)
	assert.True(t, res.AmountOut.Sign() > 0)
	assert.True(t, p.Balances[1].Cmp(big.NewInt(1_000_000)) < 0)
}

func TestWeightedSwapRejectsSameTokenPair(t *testing.T) {
	p := newWeightedPool()
	_, err := p.SimulateSwap(p.Tokens_[0].Address, p.Tokens_[0].Address, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWeightedLogSwapSyncMovesBalances(t *testing.T) {
	p := newWeightedPool()
	data := make([]byte, 64)
	big.NewInt(5_000).FillBytes(data[0:32])
	big.NewInt(4_900).FillBytes(data[32:64])

	topics := []common.Hash{
		TopicBalancerLogSwap,
		common.Hash{},
		common.BytesToHash(p.Tokens_[0].Address.Bytes()),
		common.BytesToHash(p.Tokens_[1].Address.Bytes()),
	}
	err := p.Sync(evmlog.Log{Topics: topics, Data: data})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_005_000), p.Balances[0])
	assert.Equal(t, big.NewInt(995_100), p.Balances[1])
}

func TestWeightedLogCallLeavesBalancesUntouchedButFlagsResync(t *testing.T) {
	p := newWeightedPool()
	before0, before1 := new(big.Int).Set(p.Balances[0]), new(big.Int).Set(p.Balances[1])
	assert.False(t, p.NeedsResync)
	err := p.Sync(evmlog.Log{Topics: []common.Hash{TopicBalancerLogCall}, Data: []byte{}})
	require.NoError(t, err)
	assert.Equal(t, before0, p.Balances[0])
	assert.Equal(t, before1, p.Balances[1])
	assert.True(t, p.NeedsResync)
}

func TestWeightedSetStaticAndSetBalancesClearResyncFlag(t *testing.T) {
	p := newWeightedPool()
	p.NeedsResync = true
	p.SetBalances([]*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.False(t, p.NeedsResync)

	p.NeedsResync = true
	p.SetStatic(p.Tokens_, p.Weights, p.SwapFeeBps)
	assert.False(t, p.NeedsResync)
}

func TestWeightedSnapshotRestorePreservesResyncFlag(t *testing.T) {
	p := newWeightedPool()
	err := p.Sync(evmlog.Log{Topics: []common.Hash{TopicBalancerLogCall}, Data: []byte{}})
	require.NoError(t, err)
	snap := p.Snapshot()

	p.NeedsResync = false
	p.Restore(snap)
	assert.True(t, p.NeedsResync)
}

func TestWeightedShellPopulatedByReaderSetters(t *testing.T) {
	shell := NewWeightedPoolShell(common.HexToAddress("0x4444"))
	tokens := []token.Token{
		{Address: common.HexToAddress("0x1111"), Decimals: 18},
		{Address: common.HexToAddress("0x2222"), Decimals: 6},
	}
	shell.SetStatic(tokens, []*big.Int{big.NewInt(80), big.NewInt(20)}, 10)
	shell.SetBalances([]*big.Int{big.NewInt(500), big.NewInt(500)})
	assert.Equal(t, tokens, shell.Tokens())
	assert.Equal(t, big.NewInt(500), shell.Balances[0])
}
