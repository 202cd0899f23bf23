// Package domain contains the core domain types for the pricing context.
package domain

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/harvest-keeper/internal/asset"
)

// Path is an ordered token route, first element in, last element out.
type Path []common.Address

// NewPath builds a path from token assets.
func NewPath(tokens ...*asset.Asset) Path {
	p := make(Path, len(tokens))
	for i, t := range tokens {
		p[i] = t.Address()
	}
	return p
}

// In returns the input token.
func (p Path) In() common.Address { return p[0] }

// Out returns the output token.
func (p Path) Out() common.Address { return p[len(p)-1] }

// Hops returns the number of swaps along the path.
func (p Path) Hops() int { return len(p) - 1 }

// String renders the path as symbols when the registry knows them.
func (p Path) String(reg *asset.Registry) string {
	parts := make([]string, len(p))
	for i, addr := range p {
		parts[i] = reg.TokenOrUnknown(asset.ChainIDEthereum, addr).Symbol()
	}
	return strings.Join(parts, "->")
}

// Quote is the expected output of swapping an exact input along a path.
type Quote struct {
	Path      Path
	AmountIn  asset.Amount
	AmountOut asset.Amount
	Amounts   []*big.Int // per-hop amounts, Amounts[0] == AmountIn
	Timestamp time.Time
}

// Out returns the raw output amount.
func (q *Quote) Out() *big.Int {
	return q.AmountOut.Raw()
}
