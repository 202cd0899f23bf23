// Package app contains the harvest decision engine and keeper loop.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
)

// StrategyHandle exposes the on-chain reads and the harvest call for one
// strategy kind. Amounts are in the smallest unit of their token.
type StrategyHandle interface {
	Strategy() *domain.Strategy

	// ClaimableReward is the reward token amount currently claimable.
	ClaimableReward(ctx context.Context) (*big.Int, error)

	// QuoteWant values a reward amount in the strategy's want token.
	QuoteWant(ctx context.Context, reward *big.Int) (*big.Int, error)

	// QuoteNative values a reward amount in the wrapped native token.
	QuoteNative(ctx context.Context, reward *big.Int) (*big.Int, error)

	// EstimateHarvestGas returns the harvest gas limit, margin included.
	EstimateHarvestGas(ctx context.Context) (uint64, error)

	// Harvest sends the harvest transaction at gasPrice and waits for it.
	Harvest(ctx context.Context, gasPrice *big.Int) (*domain.HarvestReceipt, error)
}

// BlockSource delivers new blocks.
type BlockSource interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
}

// GasSampler returns a fresh gas price on every call.
type GasSampler interface {
	SampleGasPrice(ctx context.Context) (*blockchainDomain.GasPrice, error)
}

// StateStore persists the last successful harvest time per strategy.
type StateStore interface {
	// LastHarvest returns unix seconds, or 0 when never harvested.
	LastHarvest(ctx context.Context, id common.Address) (int64, error)

	// RecordHarvest stores ts unless a later timestamp is already stored.
	RecordHarvest(ctx context.Context, id common.Address, ts int64) error
}

// Ledger keeps an audit trail of harvest attempts.
type Ledger interface {
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// NopLedger discards attempts.
type NopLedger struct{}

func (NopLedger) RecordAttempt(context.Context, domain.Attempt) error { return nil }
