package factory

import "github.com/ethereum/go-ethereum/common"

// Pool-creation event-signature topics (spec.md §4.2, §6.3).
var (
	// TopicPairCreated is UniswapV2Factory.PairCreated(address,address,address,uint256).
	TopicPairCreated = common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")

	// TopicPoolCreated is UniswapV3Factory.PoolCreated(address,address,uint24,int24,address).
	TopicPoolCreated = common.HexToHash("0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118")

	// TopicNewVault is a Yearn-V3-style VaultFactory.NewVault(address indexed vaultAddress, address indexed asset).
	TopicNewVault = common.HexToHash("0x4241302c393c713e690702c4a45a57e93cef59aa8c6e2358495853b3420551d8")

	// TopicLogNewPool is Balancer V1 BFactory.LOG_NEW_POOL(address indexed caller, address indexed pool).
	TopicLogNewPool = common.HexToHash("0x8ccec77b0cb63ac2cafd0f5de8cdfadab91ce656d262240ba8a6343bccc5f945")
)
