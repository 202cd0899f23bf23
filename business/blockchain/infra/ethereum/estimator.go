package ethereum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/circuitbreaker"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// Node is the subset of *ethclient.Client used on the write path.
type Node interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type estimatorMetrics struct {
	estimates metric.Int64Counter
	failures  metric.Int64Counter
}

// Estimator implements app.GasEstimator using eth_estimateGas.
type Estimator struct {
	node   Node
	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[uint64]

	tracer  trace.Tracer
	metrics *estimatorMetrics
}

// NewEstimator creates a gas estimator over node.
func NewEstimator(node Node, log logger.LoggerInterface) (*Estimator, error) {
	e := &Estimator{
		node:   node,
		logger: log,
		cb:     circuitbreaker.New[uint64](circuitbreaker.DefaultConfig("gas-estimator")),
		tracer: otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Estimator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &estimatorMetrics{}

	if e.metrics.estimates, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	); err != nil {
		return err
	}

	e.metrics.failures, err = meter.Int64Counter(
		"gas_estimate_failures_total",
		metric.WithDescription("Gas estimations that failed or would revert"),
		metric.WithUnit("{estimate}"),
	)
	return err
}

// EstimateGas simulates the call from the given account and returns the
// estimate plus a 10% margin.
func (e *Estimator) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	ctx, span := e.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("from", from.Hex()),
			attribute.String("to", to.Hex()),
			attribute.Int("data_len", len(data)),
		),
	)
	defer span.End()

	e.metrics.estimates.Add(ctx, 1)

	msg := ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	}

	gas, err := e.cb.Execute(func() (uint64, error) {
		return e.node.EstimateGas(ctx, msg)
	})
	if err != nil {
		e.metrics.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to estimate gas for %s", to.Hex())))
	}

	gas = domain.WithMargin(gas)

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")
	return gas, nil
}
