// Package pricing implements the pricing bounded context for token path quotes.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/harvest-keeper/business/pricing/app"
	pricingDI "github.com/fd1az/harvest-keeper/business/pricing/di"
	"github.com/fd1az/harvest-keeper/business/pricing/infra/uniswap"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/config"
	"github.com/fd1az/harvest-keeper/internal/di"
	"github.com/fd1az/harvest-keeper/internal/logger"
	"github.com/fd1az/harvest-keeper/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register PathQuoter (Uniswap V2 router) - private dependency
	di.RegisterToken(c, pricingDI.PathQuoter, func(sr di.ServiceRegistry) app.PathQuoter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		provider, err := uniswap.NewProvider(ethClient, cfg.Uniswap.RouterAddressHex(), cfg.Uniswap.RequestsPerMinute, log)
		if err != nil {
			panic("failed to create uniswap provider: " + err.Error())
		}
		return provider
	})

	// Register PricingService (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		registry := sr.Get("assetRegistry").(*asset.Registry)
		return app.NewPricingService(pricingDI.GetPathQuoter(sr), registry)
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "pricing module started",
		"router", mono.Config().Uniswap.RouterAddress,
		"requests_per_minute", mono.Config().Uniswap.RequestsPerMinute,
	)
	return nil
}
