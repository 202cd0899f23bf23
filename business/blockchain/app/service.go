package app

import (
	"context"

	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
)

// BlockchainService is what other contexts use: new blocks and fresh gas prices.
type BlockchainService struct {
	subscriber   BlockSubscriber
	gasOracle    *GasOracle
	positionRank int
}

// NewBlockchainService creates a BlockchainService sampling gas at positionRank.
func NewBlockchainService(subscriber BlockSubscriber, gasOracle *GasOracle, positionRank int) *BlockchainService {
	if positionRank == 0 {
		positionRank = DefaultPositionRank
	}
	return &BlockchainService{
		subscriber:   subscriber,
		gasOracle:    gasOracle,
		positionRank: positionRank,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// SampleGasPrice samples the pending pool at the configured rank.
func (s *BlockchainService) SampleGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.Sample(ctx, s.positionRank)
}

// ConnectionStatus reports the subscriber state.
func (s *BlockchainService) ConnectionStatus() domain.ConnectionStatus {
	return s.subscriber.Status()
}
