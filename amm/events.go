package amm

import "github.com/ethereum/go-ethereum/common"

// Protocol-wide event-signature topics (spec.md §6.3, §6.4). Each
// variant declares its SyncEvents() as a constant subset of these.
var (
	// TopicV2Sync is UniswapV2Pair.Sync(uint112,uint112).
	TopicV2Sync = common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")

	// TopicV3Swap is UniswapV3Pool.Swap(address,address,int256,int256,uint160,uint128,int24).
	TopicV3Swap = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

	// TopicV3Mint is UniswapV3Pool.Mint(address,address,int24,int24,uint128,uint256,uint256).
	TopicV3Mint = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")

	// TopicV3Burn is UniswapV3Pool.Burn(address,int24,int24,uint128,uint256,uint256).
	TopicV3Burn = common.HexToHash("0x0c396cd989a39f4459b5fa1aed6a9a8dcdbc45908acfd67e028cd568da98982c")

	// TopicV3Initialize is UniswapV3Pool.Initialize(uint160,int24).
	TopicV3Initialize = common.HexToHash("0x98636036cb66a9c19a37435efc1e90142190214e8abeb821bdba3f2990dd4c95")

	// TopicERC4626Deposit is ERC4626.Deposit(address,address,uint256,uint256).
	TopicERC4626Deposit = common.HexToHash("0xdcbc1c05240f31ff3ad067ef1ee35ce4997762752e3a095284754544f4c709d7")

	// TopicERC4626Withdraw is ERC4626.Withdraw(address,address,address,uint256,uint256).
	TopicERC4626Withdraw = common.HexToHash("0xfbde797d201c681b91056529119e0b02407c7bb96a4a2c75c01fc9667232c8db")

	// TopicBalancerLogSwap is BPool.LOG_SWAP(address,address,address,uint256,uint256).
	TopicBalancerLogSwap = common.HexToHash("0x908fb5ee8f16c6bc9bc3690973819f32a4d4b10188134543c88706e0e1d43378")

	// TopicBalancerLogCall is BPool.LOG_CALL(bytes4,address,bytes), used for reweight / swap-fee-change admin calls.
	TopicBalancerLogCall = common.HexToHash("0x25fce1fe01d9b241fda40b2152ddd6f4ba063fcfb3c2c81dddf84ee20d3f341f")

)

