package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// ConcentratedFactory discovers Uniswap-V3-family pools.
type ConcentratedFactory struct {
	addr          common.Address
	creationBlock uint64
}

func NewConcentratedFactory(addr common.Address, creationBlock uint64) *ConcentratedFactory {
	return &ConcentratedFactory{addr: addr, creationBlock: creationBlock}
}

func (f *ConcentratedFactory) Address() common.Address             { return f.addr }
func (f *ConcentratedFactory) CreationBlock() uint64                { return f.creationBlock }
func (f *ConcentratedFactory) PoolCreationEventSignature() common.Hash { return TopicPoolCreated }
func (f *ConcentratedFactory) PoolVariantDefault() amm.Variant      { return amm.VariantConcentrated }

func (f *ConcentratedFactory) SyncEvents() []common.Hash {
	return []common.Hash{amm.TopicV3Swap, amm.TopicV3Mint, amm.TopicV3Burn, amm.TopicV3Initialize}
}

// CreatePoolShell parses PoolCreated(address indexed token0, address
// indexed token1, uint24 indexed fee, int24 tickSpacing, address pool).
func (f *ConcentratedFactory) CreatePoolShell(log evmlog.Log) (amm.Pool, error) {
	if len(log.Topics) < 4 {
		return nil, amm.NewPopulateError(log.Address, "missing indexed fields on PoolCreated")
	}
	token0 := addressFromTopic(log.Topics[1])
	token1 := addressFromTopic(log.Topics[2])
	fee := uint32FromWord(log.Topics[3].Bytes())

	tickSpacingWord, ok0 := word(log.Data, 0)
	poolWord, ok1 := word(log.Data, 1)
	if !ok0 || !ok1 {
		return nil, amm.NewPopulateError(log.Address, "short PoolCreated log data")
	}
	tickSpacing := int32FromWord(tickSpacingWord)
	var pool common.Address
	copy(pool[:], poolWord[12:])

	return amm.NewConcentratedPool(pool, token.Token{Address: token0}, token.Token{Address: token1}, fee, tickSpacing), nil
}
