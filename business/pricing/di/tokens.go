// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/harvest-keeper/business/pricing/app"
	"github.com/fd1az/harvest-keeper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PricingService = di.NewToken[*app.PricingService]("pricing.PricingService")
)

// Private dependency tokens - internal to pricing module
var (
	PathQuoter = di.NewToken[app.PathQuoter]("pricing:pathQuoter")
)

// Helper functions for type-safe access
func GetPricingService(c di.ServiceRegistry) *app.PricingService {
	return di.GetToken(c, PricingService)
}

func GetPathQuoter(c di.ServiceRegistry) app.PathQuoter {
	return di.GetToken(c, PathQuoter)
}
