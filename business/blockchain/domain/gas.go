package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice is a sampled legacy gas price in wei. It is never reused across
// evaluations.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice copies wei into a GasPrice stamped at.
func NewGasPrice(wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), Timestamp: at}
}

// Gwei renders the price in gwei. Display only.
func (g *GasPrice) Gwei() decimal.Decimal {
	if g == nil || g.Wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(g.Wei, -9)
}

// Cost returns gasPrice × gasLimit in wei.
func (g *GasPrice) Cost(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(g.Wei, new(big.Int).SetUint64(gasLimit))
}

// WithMargin inflates an estimated gas limit by 10%.
func WithMargin(gas uint64) uint64 {
	return gas + gas/10
}
