package uniswap

import (
	"github.com/ethereum/go-ethereum/common"
)

// RouterV2Mainnet is the Uniswap V2 Router02 on Ethereum mainnet.
var RouterV2Mainnet = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

// RouterV2ABI is the subset of the Uniswap V2 Router02 ABI used for quotes.
const RouterV2ABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [
			{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const methodGetAmountsOut = "getAmountsOut"
