package curve

// StrategyABI is the subset of the Curve voter-proxy strategy ABI the keeper reads and calls.
const StrategyABI = `[
	{"inputs": [], "name": "getName", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "strategist", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "want", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "voter", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "gauge", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "curve", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "crv", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "weth", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "dai", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "FEE_DENOMINATOR", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "keepCRV", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "performanceFee", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "strategistReward", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "harvest", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "wantEarned", "type": "uint256"},
			{"indexed": false, "name": "lifetimeEarned", "type": "uint256"}
		],
		"name": "Harvested",
		"type": "event"
	}
]`

// GaugeABI is the liquidity gauge's claimable reward view.
const GaugeABI = `[
	{"inputs": [{"name": "addr", "type": "address"}], "name": "claimable_tokens", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "nonpayable", "type": "function"}
]`

// PoolABI is the subset of a 3-coin Curve pool used to value a deposit.
const PoolABI = `[
	{"inputs": [{"name": "amounts", "type": "uint256[3]"}, {"name": "is_deposit", "type": "bool"}], "name": "calc_token_amount", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "arg0", "type": "uint256"}], "name": "coins", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

// poolCoins is the coin count of the pools this handle supports.
const poolCoins = 3

const (
	methodGetName          = "getName"
	methodStrategist       = "strategist"
	methodWant             = "want"
	methodVoter            = "voter"
	methodGauge            = "gauge"
	methodCurve            = "curve"
	methodCRV              = "crv"
	methodWETH             = "weth"
	methodDAI              = "dai"
	methodFeeDenominator   = "FEE_DENOMINATOR"
	methodKeepCRV          = "keepCRV"
	methodPerformanceFee   = "performanceFee"
	methodStrategistReward = "strategistReward"
	methodHarvest          = "harvest"

	methodClaimableTokens = "claimable_tokens"
	methodCalcTokenAmount = "calc_token_amount"
	methodCoins           = "coins"

	eventHarvested = "Harvested"
)
