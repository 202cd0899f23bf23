package curve

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/fd1az/harvest-keeper/business/blockchain/app"
	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/app"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	pricingDomain "github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

const tracerName = "curve"

var _ app.StrategyHandle = (*Handle)(nil)

// Quoter returns the output amount of a swap route.
type Quoter interface {
	AmountOut(ctx context.Context, amountIn *big.Int, path pricingDomain.Path) (*big.Int, error)
}

// Handle answers the keeper's questions about one Curve voter-proxy strategy
// and sends its harvest transaction.
type Handle struct {
	strategy   *domain.Strategy
	b          *binding
	quoter     Quoter
	estimator  blockchainApp.GasEstimator
	transactor blockchainApp.Transactor

	harvestData []byte
	harvested   abi.Event

	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHandle binds s to its contracts. s must be a loaded curve voter-proxy strategy.
func NewHandle(
	s *domain.Strategy,
	caller ethereum.ContractCaller,
	quoter Quoter,
	estimator blockchainApp.GasEstimator,
	transactor blockchainApp.Transactor,
	log logger.LoggerInterface,
) (*Handle, error) {
	if s == nil || s.Kind != domain.KindCurveVoterProxy || s.Curve == nil {
		return nil, apperror.New(apperror.CodeUnsupportedStrategy,
			apperror.WithContext("not a curve voter-proxy strategy"))
	}

	b, err := newBinding(caller, log)
	if err != nil {
		return nil, err
	}
	data, err := b.strategy.Pack(methodHarvest)
	if err != nil {
		return nil, err
	}

	return &Handle{
		strategy:    s,
		b:           b,
		quoter:      quoter,
		estimator:   estimator,
		transactor:  transactor,
		harvestData: data,
		harvested:   b.strategy.Events[eventHarvested],
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// Strategy returns the loaded strategy.
func (h *Handle) Strategy() *domain.Strategy {
	return h.strategy
}

// ClaimableReward reads the reward the gauge would mint to the voter proxy.
func (h *Handle) ClaimableReward(ctx context.Context) (*big.Int, error) {
	ctx, span := h.start(ctx, "curve.claimable_reward")
	defer span.End()

	v, err := h.b.readUint(ctx, h.b.gauge, h.strategy.Curve.Gauge, methodClaimableTokens, h.strategy.Curve.VoterProxy)
	if err != nil {
		return nil, h.fail(span, "claimable reward", err)
	}
	span.SetAttributes(attribute.String("claimable", v.String()))
	return v, nil
}

// QuoteWant swaps reward to the output token along the router path, then
// values a single-sided deposit of it in the pool.
func (h *Handle) QuoteWant(ctx context.Context, reward *big.Int) (*big.Int, error) {
	ctx, span := h.start(ctx, "curve.quote_want")
	defer span.End()

	out, err := h.quoter.AmountOut(ctx, reward, pricingDomain.Path(h.strategy.Curve.RewardToWant()))
	if err != nil {
		return nil, h.fail(span, "reward to output quote", err)
	}
	if out.Sign() == 0 {
		return new(big.Int), nil
	}

	var amounts [poolCoins]*big.Int
	for i := range amounts {
		amounts[i] = new(big.Int)
	}
	amounts[h.strategy.Curve.OutputIndex] = out

	lp, err := h.b.readUint(ctx, h.b.pool, h.strategy.Curve.Pool, methodCalcTokenAmount, amounts, true)
	if err != nil {
		return nil, h.fail(span, "pool deposit quote", err)
	}
	span.SetAttributes(
		attribute.String("output", out.String()),
		attribute.String("want", lp.String()),
	)
	return lp, nil
}

// QuoteNative swaps reward to the wrapped native token along the router path.
func (h *Handle) QuoteNative(ctx context.Context, reward *big.Int) (*big.Int, error) {
	ctx, span := h.start(ctx, "curve.quote_native")
	defer span.End()

	v, err := h.quoter.AmountOut(ctx, reward, pricingDomain.Path(h.strategy.Curve.RewardToNative()))
	if err != nil {
		return nil, h.fail(span, "reward to native quote", err)
	}
	return v, nil
}

// EstimateHarvestGas estimates harvest() sent from the strategist.
func (h *Handle) EstimateHarvestGas(ctx context.Context) (uint64, error) {
	ctx, span := h.start(ctx, "curve.estimate_harvest")
	defer span.End()

	gas, err := h.estimator.EstimateGas(ctx, h.strategy.Strategist, h.strategy.Address, h.harvestData)
	if err != nil {
		return 0, h.fail(span, "harvest gas estimate", err)
	}
	span.SetAttributes(attribute.Int64("gas_limit", int64(gas)))
	return gas, nil
}

// Harvest sends harvest() at gasPrice and reads wantEarned from the
// Harvested event.
func (h *Handle) Harvest(ctx context.Context, gasPrice *big.Int) (*domain.HarvestReceipt, error) {
	ctx, span := h.start(ctx, "curve.harvest")
	defer span.End()

	receipt, err := h.transactor.Send(ctx, blockchainDomain.Call{
		To:       h.strategy.Address,
		Data:     h.harvestData,
		GasPrice: gasPrice,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "harvest failed")
		return nil, err
	}

	out := &domain.HarvestReceipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}
	earned, ok := h.wantEarned(receipt.Logs)
	if ok {
		out.WantEarned = earned
	} else {
		h.logger.Warn(ctx, "harvest receipt has no Harvested event",
			"strategy", h.strategy.String(), "tx_hash", receipt.TxHash.Hex())
	}

	span.SetAttributes(attribute.String("tx_hash", receipt.TxHash.Hex()))
	span.SetStatus(codes.Ok, "harvested")
	return out, nil
}

func (h *Handle) wantEarned(logs []*types.Log) (*big.Int, bool) {
	for _, l := range logs {
		if l == nil || l.Address != h.strategy.Address || len(l.Topics) == 0 || l.Topics[0] != h.harvested.ID {
			continue
		}
		values, err := h.harvested.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(values) == 0 {
			continue
		}
		if v, ok := values[0].(*big.Int); ok {
			return v, true
		}
	}
	return nil, false
}

func (h *Handle) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("strategy", h.strategy.Address.Hex()),
	))
}

func (h *Handle) fail(span trace.Span, what string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, what+" failed")
	return apperror.Unavailable(what, err)
}
