// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/harvest-keeper/business/blockchain/app"
	blockchainDI "github.com/fd1az/harvest-keeper/business/blockchain/di"
	"github.com/fd1az/harvest-keeper/business/blockchain/infra/ethereum"
	"github.com/fd1az/harvest-keeper/internal/config"
	"github.com/fd1az/harvest-keeper/internal/di"
	"github.com/fd1az/harvest-keeper/internal/httpclient"
	"github.com/fd1az/harvest-keeper/internal/logger"
	"github.com/fd1az/harvest-keeper/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register BlockSubscriber (private - internal dependency)
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		if cfg.Ethereum.PollInterval > 0 {
			subCfg.PollInterval = cfg.Ethereum.PollInterval
		}
		if cfg.Ethereum.ReconnectDelay > 0 {
			subCfg.ReconnectDelay = cfg.Ethereum.ReconnectDelay
		}
		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	// Register PendingPool (private - source picked by gas.source)
	di.RegisterToken(c, blockchainDI.PendingPool, func(sr di.ServiceRegistry) app.PendingPool {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Gas.Source == "txpool" {
			return ethereum.NewTxPoolPendingPool(sr.Get("rpcClient").(*rpc.Client), log)
		}

		client, err := httpclient.New(httpclient.WithProviderName("geth-graphql"))
		if err != nil {
			panic("failed to create graphql client: " + err.Error())
		}
		return ethereum.NewGraphQLPendingPool(client, cfg.Ethereum.GraphQLEndpoint(), log)
	})

	// Register BlockchainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracle := app.NewGasOracle(blockchainDI.GetPendingPool(sr), log)
		return app.NewBlockchainService(blockchainDI.GetBlockSubscriber(sr), oracle, cfg.Gas.PositionRank)
	})

	// Register GasEstimator (public)
	di.RegisterToken(c, blockchainDI.GasEstimator, func(sr di.ServiceRegistry) app.GasEstimator {
		log := sr.Get("logger").(logger.LoggerInterface)

		est, err := ethereum.NewEstimator(sr.Get("ethClient").(*ethclient.Client), log)
		if err != nil {
			panic("failed to create gas estimator: " + err.Error())
		}
		return est
	})

	// Register Transactor (public)
	di.RegisterToken(c, blockchainDI.Transactor, func(sr di.ServiceRegistry) app.Transactor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		tr, err := ethereum.NewTransactor(
			sr.Get("ethClient").(*ethclient.Client),
			blockchainDI.GetGasEstimator(sr),
			ethereum.TransactorConfig{
				PrivateKey:     cfg.Keeper.PrivateKey,
				ChainID:        new(big.Int).SetUint64(cfg.Ethereum.ChainID),
				SubmitTimeout:  cfg.Harvest.CallTimeout,
				ReceiptTimeout: cfg.Harvest.ReceiptTimeout,
			},
			log,
		)
		if err != nil {
			panic("failed to create transactor: " + err.Error())
		}
		return tr
	})

	return nil
}

// Startup checks the node is on the configured chain and resolves the keeper account.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	chainID, err := mono.EthClient().ChainID(ctx)
	if err != nil {
		log.Warn(ctx, "could not read chain id from node", "error", err)
	} else if chainID.Uint64() != cfg.Ethereum.ChainID {
		log.Warn(ctx, "node chain id differs from configuration",
			"node", chainID.String(), "configured", cfg.Ethereum.ChainID)
	}

	tr := blockchainDI.GetTransactor(mono.Services())
	log.Info(ctx, "blockchain module started",
		"keeper", tr.From().Hex(),
		"gas_source", cfg.Gas.Source,
		"position_rank", cfg.Gas.PositionRank,
	)
	return nil
}
