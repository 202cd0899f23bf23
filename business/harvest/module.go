// Package harvest implements the harvest bounded context: trigger
// evaluation, the per-block keeper loop and the strategy handles.
package harvest

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/harvest-keeper/business/blockchain/di"
	"github.com/fd1az/harvest-keeper/business/harvest/app"
	harvestDI "github.com/fd1az/harvest-keeper/business/harvest/di"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/infra/curve"
	"github.com/fd1az/harvest-keeper/business/harvest/infra/ledger"
	"github.com/fd1az/harvest-keeper/business/harvest/infra/state"
	pricingDI "github.com/fd1az/harvest-keeper/business/pricing/di"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/config"
	"github.com/fd1az/harvest-keeper/internal/di"
	"github.com/fd1az/harvest-keeper/internal/logger"
	"github.com/fd1az/harvest-keeper/internal/monolith"
)

// Module implements the harvest bounded context. Startup loads the managed
// strategies and builds the keeper.
type Module struct {
	keeper *app.Keeper
}

// Keeper returns the loop built by Startup.
func (m *Module) Keeper() *app.Keeper {
	return m.keeper
}

// Close releases the ledger.
func (m *Module) Close(sr di.ServiceRegistry) error {
	if c, ok := harvestDI.GetLedger(sr).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RegisterServices registers all harvest services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Evaluator (private)
	di.RegisterToken(c, harvestDI.Evaluator, func(sr di.ServiceRegistry) *app.Evaluator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		minEarnings, err := cfg.Harvest.MinEarningsInt()
		if err != nil {
			panic("invalid min earnings: " + err.Error())
		}
		return app.NewEvaluator(app.EvaluatorConfig{
			Interval:    cfg.Harvest.Interval(),
			MinEarnings: minEarnings,
			CallTimeout: cfg.Harvest.CallTimeout,
		}, registry, log)
	})

	// Register Ledger (private - nop when ledger.path is empty)
	di.RegisterToken(c, harvestDI.Ledger, func(sr di.ServiceRegistry) app.Ledger {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Ledger.Path == "" {
			return app.NopLedger{}
		}
		l, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			panic("failed to open ledger: " + err.Error())
		}
		return l
	})

	// Register CurveLoader (private)
	di.RegisterToken(c, harvestDI.CurveLoader, func(sr di.ServiceRegistry) *curve.Loader {
		log := sr.Get("logger").(logger.LoggerInterface)
		l, err := curve.NewLoader(sr.Get("ethClient").(*ethclient.Client), log)
		if err != nil {
			panic("failed to create curve loader: " + err.Error())
		}
		return l
	})

	return nil
}

// Startup opens the harvest state, loads every configured strategy, keeps
// the ones this keeper is strategist of, and builds the keeper.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	sr := mono.Services()

	store, err := state.Open(cfg.Harvest.StatePath)
	if err != nil {
		return fmt.Errorf("open harvest state: %w", err)
	}

	keeperAccount := blockchainDI.GetTransactor(sr).From()
	handles, err := m.managed(ctx, mono, keeperAccount)
	if err != nil {
		return err
	}

	k, err := app.NewKeeper(
		blockchainDI.GetBlockchainService(sr),
		blockchainDI.GetBlockchainService(sr),
		harvestDI.GetEvaluator(sr),
		store,
		harvestDI.GetLedger(sr),
		handles,
		app.KeeperConfig{PostCycleDelay: cfg.Harvest.PostCycleDelay},
		log,
	)
	if err != nil {
		return fmt.Errorf("create keeper: %w", err)
	}
	m.keeper = k

	log.Info(ctx, "harvest module started",
		"configured", len(cfg.Harvest.Strategies),
		"managed", len(handles),
		"state", store.Path(),
		"ledger", cfg.Ledger.Path,
	)
	return nil
}

// managed builds one handle per configured strategy whose strategist is
// keeperAccount, in configuration order.
func (m *Module) managed(ctx context.Context, mono monolith.Monolith, keeperAccount common.Address) ([]app.StrategyHandle, error) {
	cfg := mono.Config()
	log := mono.Logger()
	sr := mono.Services()

	var handles []app.StrategyHandle
	seen := make(map[common.Address]bool)
	for _, sc := range cfg.Harvest.Strategies {
		addr := common.HexToAddress(sc.Address)
		if seen[addr] {
			log.Warn(ctx, "strategy listed twice, ignoring duplicate", "strategy", addr.Hex())
			continue
		}
		seen[addr] = true

		kind, err := domain.ParseKind(sc.Kind)
		if err != nil {
			return nil, apperror.New(apperror.CodeUnsupportedStrategy,
				apperror.WithCause(err),
				apperror.WithContext(sc.Address))
		}

		var h app.StrategyHandle
		switch kind {
		case domain.KindCurveVoterProxy:
			s, err := harvestDI.GetCurveLoader(sr).Load(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("load strategy %s: %w", addr.Hex(), err)
			}
			if !s.ManagedBy(keeperAccount) {
				log.Info(ctx, "not strategist, skipping strategy",
					"strategy", s.String(), "strategist", s.Strategist.Hex(), "keeper", keeperAccount.Hex())
				continue
			}
			h, err = curve.NewHandle(s,
				mono.EthClient(),
				pricingDI.GetPricingService(sr),
				blockchainDI.GetGasEstimator(sr),
				blockchainDI.GetTransactor(sr),
				log,
			)
			if err != nil {
				return nil, err
			}
		default:
			return nil, apperror.New(apperror.CodeUnsupportedStrategy,
				apperror.WithContext(kind.String()))
		}

		log.Info(ctx, "managing strategy", "strategy", h.Strategy().String(), "kind", kind.String())
		handles = append(handles, h)
	}
	return handles, nil
}
