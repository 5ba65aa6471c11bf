package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// ConstantProductFactory discovers Uniswap-V2-family pairs. FeeBps is
// fixed per deployment (Uniswap V2 itself: 30; many forks: 25 or 20),
// since PairCreated carries no fee field.
type ConstantProductFactory struct {
	addr          common.Address
	creationBlock uint64
	feeBps        uint32
}

// NewConstantProductFactory constructs a factory recognizing PairCreated
// logs emitted by addr from creationBlock onward.
func NewConstantProductFactory(addr common.Address, creationBlock uint64, feeBps uint32) *ConstantProductFactory {
	return &ConstantProductFactory{addr: addr, creationBlock: creationBlock, feeBps: feeBps}
}

func (f *ConstantProductFactory) Address() common.Address             { return f.addr }
func (f *ConstantProductFactory) CreationBlock() uint64                { return f.creationBlock }
func (f *ConstantProductFactory) PoolCreationEventSignature() common.Hash { return TopicPairCreated }
func (f *ConstantProductFactory) PoolVariantDefault() amm.Variant      { return amm.VariantConstantProduct }
func (f *ConstantProductFactory) SyncEvents() []common.Hash            { return []common.Hash{amm.TopicV2Sync} }

// CreatePoolShell parses PairCreated(address indexed token0, address
// indexed token1, address pair, uint256).
func (f *ConstantProductFactory) CreatePoolShell(log evmlog.Log) (amm.Pool, error) {
	if len(log.Topics) < 3 {
		return nil, amm.NewPopulateError(log.Address, "missing indexed tokens on PairCreated")
	}
	token0 := addressFromTopic(log.Topics[1])
	token1 := addressFromTopic(log.Topics[2])
	pairWord, ok := word(log.Data, 0)
	if !ok {
		return nil, amm.NewPopulateError(log.Address, "short PairCreated log data")
	}
	var pair common.Address
	copy(pair[:], pairWord[12:])

	return amm.NewConstantProductPool(pair, token.Token{Address: token0}, token.Token{Address: token1}, f.feeBps), nil
}
