package factory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/token"
)

// Vault4626Factory discovers ERC-4626 vaults deployed via a
// Yearn-V3-style VaultFactory emitting NewVault(vault, asset).
type Vault4626Factory struct {
	addr          common.Address
	creationBlock uint64
}

func NewVault4626Factory(addr common.Address, creationBlock uint64) *Vault4626Factory {
	return &Vault4626Factory{addr: addr, creationBlock: creationBlock}
}

func (f *Vault4626Factory) Address() common.Address             { return f.addr }
func (f *Vault4626Factory) CreationBlock() uint64                { return f.creationBlock }
func (f *Vault4626Factory) PoolCreationEventSignature() common.Hash { return TopicNewVault }
func (f *Vault4626Factory) PoolVariantDefault() amm.Variant      { return amm.VariantVault4626 }

func (f *Vault4626Factory) SyncEvents() []common.Hash {
	return []common.Hash{amm.TopicERC4626Deposit, amm.TopicERC4626Withdraw}
}

// CreatePoolShell parses NewVault(address indexed vaultAddress,
// address indexed asset).
func (f *Vault4626Factory) CreatePoolShell(log evmlog.Log) (amm.Pool, error) {
	if len(log.Topics) < 3 {
		return nil, amm.NewPopulateError(log.Address, "missing indexed fields on NewVault")
	}
	vault := addressFromTopic(log.Topics[1])
	asset := addressFromTopic(log.Topics[2])
	return amm.NewVault4626Pool(vault, token.Token{Address: asset}, token.Token{Address: vault}), nil
}
