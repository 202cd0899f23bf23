// Package di contains dependency injection tokens for the harvest context.
package di

import (
	"github.com/fd1az/harvest-keeper/business/harvest/app"
	"github.com/fd1az/harvest-keeper/business/harvest/infra/curve"
	"github.com/fd1az/harvest-keeper/internal/di"
)

// Private dependency tokens - internal to harvest module
var (
	Evaluator   = di.NewToken[*app.Evaluator]("harvest:evaluator")
	Ledger      = di.NewToken[app.Ledger]("harvest:ledger")
	CurveLoader = di.NewToken[*curve.Loader]("harvest:curveLoader")
)

// Helper functions for type-safe access
func GetEvaluator(c di.ServiceRegistry) *app.Evaluator {
	return di.GetToken(c, Evaluator)
}

func GetLedger(c di.ServiceRegistry) app.Ledger {
	return di.GetToken(c, Ledger)
}

func GetCurveLoader(c di.ServiceRegistry) *curve.Loader {
	return di.GetToken(c, CurveLoader)
}
