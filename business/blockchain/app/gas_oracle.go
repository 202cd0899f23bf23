package app

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// DefaultPositionRank is the pending-pool position sampled when none is configured.
const DefaultPositionRank = 500

// GasOracle picks a competitive gas price from the pending pool: the price at
// a fixed rank when pending prices are sorted from highest to lowest.
type GasOracle struct {
	pool   PendingPool
	logger logger.LoggerInterface
	now    func() time.Time
}

// NewGasOracle creates a GasOracle over pool.
func NewGasOracle(pool PendingPool, log logger.LoggerInterface) *GasOracle {
	return &GasOracle{pool: pool, logger: log, now: time.Now}
}

// Sample queries the pool once and returns the price at positionRank. Every
// call hits the pool; nothing is cached.
func (o *GasOracle) Sample(ctx context.Context, positionRank int) (*domain.GasPrice, error) {
	prices, err := o.pool.PendingGasPrices(ctx)
	if err != nil {
		return nil, apperror.Unavailable("pending gas prices", err)
	}

	wei, err := SelectByRank(prices, positionRank)
	if err != nil {
		return nil, err
	}

	o.logger.Debug(ctx, "gas price sampled",
		"pending", len(prices),
		"rank", positionRank,
		"wei", wei.String())

	return domain.NewGasPrice(wei, o.now()), nil
}

// SelectByRank sorts prices descending and returns the one at 1-based rank.
// A rank below 1 is treated as 1; a rank past the end yields the lowest price.
func SelectByRank(prices []*big.Int, rank int) (*big.Int, error) {
	if len(prices) == 0 {
		return nil, apperror.New(apperror.CodeDataUnavailable,
			apperror.WithContext("pending pool is empty"))
	}

	sorted := make([]*big.Int, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) > 0
	})

	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return new(big.Int).Set(sorted[rank-1]), nil
}
