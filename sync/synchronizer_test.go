package sync

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/internal/metrics"
	"github.com/luxfi/statespace/registry"
	"github.com/luxfi/statespace/statecache"
	"github.com/luxfi/statespace/token"
)

// fakeSource is a hand-rolled evmlog.Source test double: a linear or
// forkable chain of blocks with logs keyed by block hash.
type fakeSource struct {
	blocks  map[common.Hash]evmlog.Block
	logs    map[common.Hash][]evmlog.Log
	heads   chan evmlog.HeadEvent
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		blocks: make(map[common.Hash]evmlog.Block),
		logs:   make(map[common.Hash][]evmlog.Log),
		heads:  make(chan evmlog.HeadEvent, 16),
	}
}

func (f *fakeSource) addBlock(b evmlog.Block, logs []evmlog.Log) {
	f.blocks[b.Hash] = b
	f.logs[b.Hash] = logs
}

func (f *fakeSource) emit(b evmlog.Block) { f.heads <- evmlog.HeadEvent{Block: b} }

func (f *fakeSource) Logs(ctx context.Context, filter evmlog.Filter) ([]evmlog.Log, error) {
	return nil, nil
}

func (f *fakeSource) SubscribeHeads(ctx context.Context) (<-chan evmlog.HeadEvent, error) {
	return f.heads, nil
}

func (f *fakeSource) LogsForBlock(ctx context.Context, hash common.Hash) ([]evmlog.Log, error) {
	return f.logs[hash], nil
}

func (f *fakeSource) GetBlock(ctx context.Context, hash common.Hash, number uint64) (evmlog.Block, error) {
	if b, ok := f.blocks[hash]; ok {
		return b, nil
	}
	return evmlog.Block{}, assertNotFound
}

func (f *fakeSource) HeadBlock(ctx context.Context) (evmlog.Block, error) {
	return evmlog.Block{}, nil
}

var assertNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "block not found" }

func testPool(addr string) amm.Pool {
	a := token.Token{Address: common.HexToAddress("0xa"), Decimals: 18}
	b := token.Token{Address: common.HexToAddress("0xb"), Decimals: 18}
	p := amm.NewConstantProductPool(common.HexToAddress(addr), a, b, 30)
	p.ReserveA = big.NewInt(100)
	p.ReserveB = big.NewInt(100)
	return p
}

func syncLog(poolAddr common.Address, reserveA, reserveB int64) evmlog.Log {
	data := make([]byte, 64)
	big.NewInt(reserveA).FillBytes(data[0:32])
	big.NewInt(reserveB).FillBytes(data[32:64])
	return evmlog.Log{Address: poolAddr, Topics: []common.Hash{amm.TopicV2Sync}, Data: data}
}

func TestApplyBlockExtendsHeadAndAppliesLogs(t *testing.T) {
	reg := registry.New()
	p := testPool("0x1")
	require.NoError(t, reg.Insert(p))

	src := newFakeSource()
	cache := statecache.New(8)
	s := New(src, reg, cache, metrics.New())

	genesis := evmlog.Block{Number: 0, Hash: common.HexToHash("0xg")}
	s.Bootstrap(genesis)

	block1 := evmlog.Block{Number: 1, Hash: common.HexToHash("0x1"), ParentHash: genesis.Hash}
	src.addBlock(block1, []evmlog.Log{syncLog(p.Address(), 200, 50)})

	require.NoError(t, s.applyBlock(context.Background(), block1))

	num, hash := s.Head()
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, block1.Hash, hash)
	assert.Equal(t, big.NewInt(200), reg.Get(p.Address()).(*amm.ConstantProductPool).ReserveA)
	assert.Equal(t, 1, cache.Len())
}

func TestReconcileRewindsOnReorgAndReappliesNewChain(t *testing.T) {
	reg := registry.New()
	p := testPool("0x1")
	require.NoError(t, reg.Insert(p))

	src := newFakeSource()
	cache := statecache.New(8)
	s := New(src, reg, cache, metrics.New())

	genesis := evmlog.Block{Number: 0, Hash: common.HexToHash("0xg")}
	src.addBlock(genesis, nil)
	s.Bootstrap(genesis)

	block1 := evmlog.Block{Number: 1, Hash: common.HexToHash("0x1"), ParentHash: genesis.Hash}
	src.addBlock(block1, nil)
	require.NoError(t, s.applyBlock(context.Background(), block1))

	oldBlock2 := evmlog.Block{Number: 2, Hash: common.HexToHash("0xa2"), ParentHash: block1.Hash}
	src.addBlock(oldBlock2, []evmlog.Log{syncLog(p.Address(), 111, 111)})
	require.NoError(t, s.applyBlock(context.Background(), oldBlock2))

	// A competing chain reorganizes block 2 onward, sharing block 1 as
	// the common ancestor.
	newBlock2 := evmlog.Block{Number: 2, Hash: common.HexToHash("0xb2"), ParentHash: block1.Hash}
	src.addBlock(newBlock2, []evmlog.Log{syncLog(p.Address(), 222, 222)})

	require.NoError(t, s.reconcile(context.Background(), newBlock2))

	_, hash := s.Head()
	assert.Equal(t, newBlock2.Hash, hash)
	assert.Equal(t, big.NewInt(222), reg.Get(p.Address()).(*amm.ConstantProductPool).ReserveA)
}

func TestReconcileBeyondCacheWindowFaultsSession(t *testing.T) {
	reg := registry.New()
	p := testPool("0x1")
	require.NoError(t, reg.Insert(p))

	src := newFakeSource()
	cache := statecache.New(1)
	s := New(src, reg, cache, metrics.New())

	genesis := evmlog.Block{Number: 0, Hash: common.HexToHash("0xg")}
	src.addBlock(genesis, nil)
	s.Bootstrap(genesis)

	block1 := evmlog.Block{Number: 1, Hash: common.HexToHash("0x1"), ParentHash: genesis.Hash}
	src.addBlock(block1, nil)
	require.NoError(t, s.applyBlock(context.Background(), block1))

	block2 := evmlog.Block{Number: 2, Hash: common.HexToHash("0x2"), ParentHash: block1.Hash}
	src.addBlock(block2, nil)
	require.NoError(t, s.applyBlock(context.Background(), block2))

	// A reorg at block 1, but the cache (depth 1) has already evicted it.
	forkedBlock1 := evmlog.Block{Number: 1, Hash: common.HexToHash("0xf1"), ParentHash: genesis.Hash}
	forkedBlock2 := evmlog.Block{Number: 2, Hash: common.HexToHash("0xf2"), ParentHash: forkedBlock1.Hash}
	src.addBlock(forkedBlock1, nil)
	src.addBlock(forkedBlock2, nil)

	err := s.reconcile(context.Background(), forkedBlock2)
	assert.ErrorIs(t, err, amm.ErrReorgTooDeep)
}

func TestSubscribeReceivesNotificationOnApply(t *testing.T) {
	reg := registry.New()
	src := newFakeSource()
	cache := statecache.New(8)
	s := New(src, reg, cache, metrics.New())
	s.Bootstrap(evmlog.Block{Number: 0, Hash: common.HexToHash("0xg")})

	sub := s.Subscribe(4)
	block1 := evmlog.Block{Number: 1, Hash: common.HexToHash("0x1"), ParentHash: common.HexToHash("0xg")}
	src.addBlock(block1, nil)
	require.NoError(t, s.applyBlock(context.Background(), block1))

	select {
	case n := <-sub.Chan():
		assert.Equal(t, uint64(1), n.BlockNumber)
		assert.False(t, n.Reverted)
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
}
