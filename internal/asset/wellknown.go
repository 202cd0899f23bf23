package asset

import "github.com/ethereum/go-ethereum/common"

const ChainIDEthereum = 1

// Ethereum mainnet token addresses used by the keeper's strategies.
var (
	AddrCRV  = common.HexToAddress("0xD533a949740bb3306d119CC777fa900bA034cd52")
	AddrWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	Addr3CRV = common.HexToAddress("0x6c3F90f043a72FA612cbac8115EE7e52BDe6E490")
)

var (
	ETH     = New(NativeID(ChainIDEthereum), "ETH", "Ethereum", 18)
	CRV     = NewToken(ChainIDEthereum, AddrCRV, "CRV", "Curve DAO Token", 18)
	WETH    = NewToken(ChainIDEthereum, AddrWETH, "WETH", "Wrapped Ether", 18)
	DAI     = NewToken(ChainIDEthereum, AddrDAI, "DAI", "Dai Stablecoin", 18)
	USDC    = NewToken(ChainIDEthereum, AddrUSDC, "USDC", "USD Coin", 6)
	USDT    = NewToken(ChainIDEthereum, AddrUSDT, "USDT", "Tether USD", 6)
	Curve3P = NewToken(ChainIDEthereum, Addr3CRV, "3CRV", "Curve.fi DAI/USDC/USDT", 18)
)

// DefaultRegistry returns a registry with the mainnet assets above.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{ETH, CRV, WETH, DAI, USDC, USDT, Curve3P} {
		r.Register(a)
	}
	return r
}
