// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/harvest-keeper/business/blockchain/app"
	"github.com/fd1az/harvest-keeper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	GasEstimator      = di.NewToken[app.GasEstimator]("blockchain.GasEstimator")
	Transactor        = di.NewToken[app.Transactor]("blockchain.Transactor")
)

// Private dependency tokens - internal to blockchain module
var (
	BlockSubscriber = di.NewToken[app.BlockSubscriber]("blockchain:blockSubscriber")
	PendingPool     = di.NewToken[app.PendingPool]("blockchain:pendingPool")
)

// Helper functions for type-safe access
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetGasEstimator(c di.ServiceRegistry) app.GasEstimator {
	return di.GetToken(c, GasEstimator)
}

func GetTransactor(c di.ServiceRegistry) app.Transactor {
	return di.GetToken(c, Transactor)
}

func GetBlockSubscriber(c di.ServiceRegistry) app.BlockSubscriber {
	return di.GetToken(c, BlockSubscriber)
}

func GetPendingPool(c di.ServiceRegistry) app.PendingPool {
	return di.GetToken(c, PendingPool)
}
