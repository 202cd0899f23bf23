// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
)

// BlockSubscriber delivers new block headers.
type BlockSubscriber interface {
	// Subscribe starts listening and returns the block channel. The channel
	// is closed when the subscriber is closed.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// Status reports the connection state.
	Status() domain.ConnectionStatus
}

// PendingPool lists the gas prices of the node's pending transactions.
type PendingPool interface {
	PendingGasPrices(ctx context.Context) ([]*big.Int, error)
}

// GasEstimator estimates a call's gas limit, safety margin included.
type GasEstimator interface {
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)
}

// Transactor signs and sends calls from the keeper account and waits for them to be mined.
type Transactor interface {
	From() common.Address
	Send(ctx context.Context, call domain.Call) (*domain.Receipt, error)
}
