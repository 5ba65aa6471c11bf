package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
)

// WeightedFactory discovers Balancer-V1-family pools via BFactory's
// LOG_NEW_POOL event.
type WeightedFactory struct {
	addr          common.Address
	creationBlock uint64
}

func NewWeightedFactory(addr common.Address, creationBlock uint64) *WeightedFactory {
	return &WeightedFactory{addr: addr, creationBlock: creationBlock}
}

func (f *WeightedFactory) Address() common.Address             { return f.addr }
func (f *WeightedFactory) CreationBlock() uint64                { return f.creationBlock }
func (f *WeightedFactory) PoolCreationEventSignature() common.Hash { return TopicLogNewPool }
func (f *WeightedFactory) PoolVariantDefault() amm.Variant      { return amm.VariantWeighted }

func (f *WeightedFactory) SyncEvents() []common.Hash {
	return []common.Hash{amm.TopicBalancerLogSwap, amm.TopicBalancerLogCall}
}

// CreatePoolShell parses LOG_NEW_POOL(address indexed caller, address
// indexed pool); the token list and weights are populated later by
// the Batch State Reader, since BFactory's creation log carries
// neither.
func (f *WeightedFactory) CreatePoolShell(log evmlog.Log) (amm.Pool, error) {
	if len(log.Topics) < 3 {
		return nil, amm.NewPopulateError(log.Address, "missing indexed fields on LOG_NEW_POOL")
	}
	pool := addressFromTopic(log.Topics[2])
	return amm.NewWeightedPoolShell(pool), nil
}
