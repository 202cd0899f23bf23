// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"math/big"

	"github.com/fd1az/harvest-keeper/business/pricing/domain"
)

// PathQuoter returns the amounts obtained at each hop of a swap route.
type PathQuoter interface {
	// AmountsOut mirrors the router call: result[0] is amountIn and the
	// last element is the output amount.
	AmountsOut(ctx context.Context, amountIn *big.Int, path domain.Path) ([]*big.Int, error)
}
