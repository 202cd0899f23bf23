// Package asset models on-chain tokens and exact token amounts.
// Amounts are big.Int in the token's smallest unit; decimal.Decimal is used
// only when rendering an amount for humans.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies an asset by chain and contract address. The zero address is
// the chain's native coin.
type ID struct {
	chainID uint64
	address common.Address
}

// NativeID returns the ID of a chain's native coin.
func NativeID(chainID uint64) ID {
	return ID{chainID: chainID}
}

// TokenID returns the ID of an ERC20 token.
func TokenID(chainID uint64, addr common.Address) ID {
	return ID{chainID: chainID, address: addr}
}

// ChainID returns the chain the asset lives on.
func (id ID) ChainID() uint64 { return id.chainID }

// Address returns the token contract (zero for native coins).
func (id ID) Address() common.Address { return id.address }

// IsNative reports whether the ID is a native coin.
func (id ID) IsNative() bool { return id.address == (common.Address{}) }

func (id ID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Asset is token metadata. The symbol is for display, never identity.
type Asset struct {
	id       ID
	symbol   string
	name     string
	decimals uint8
}

// New creates an Asset.
func New(id ID, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}
}

// NewToken creates an ERC20 asset on chainID.
func NewToken(chainID uint64, addr common.Address, symbol, name string, decimals uint8) *Asset {
	return New(TokenID(chainID, addr), symbol, name, decimals)
}

func (a *Asset) ID() ID { return a.id }
func (a *Asset) Symbol() string { return a.symbol }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) Address() common.Address { return a.id.Address() }
func (a *Asset) String() string { return a.symbol }

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}
