// Package uniswap implements the PathQuoter interface for the Uniswap V2 router.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/business/pricing/app"
	"github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/circuitbreaker"
	"github.com/fd1az/harvest-keeper/internal/logger"
	"github.com/fd1az/harvest-keeper/internal/ratelimit"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

// Ensure Provider implements PathQuoter.
var _ app.PathQuoter = (*Provider)(nil)

// providerMetrics holds OTEL metric instruments.
type providerMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Provider implements PathQuoter with the V2 router's getAmountsOut.
type Provider struct {
	caller    ethereum.ContractCaller
	router    common.Address
	routerABI abi.ABI

	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates a router quoter. requestsPerMinute <= 0 disables throttling.
func NewProvider(caller ethereum.ContractCaller, router common.Address, requestsPerMinute int, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(RouterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	p := &Provider{
		caller:    caller,
		router:    router,
		routerABI: parsedABI,
		limiter:   ratelimit.New(requestsPerMinute),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("uniswap-router")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		p.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	p.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.quotesTotal, err = meter.Int64Counter(
		"uniswap_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// AmountsOut calls getAmountsOut(amountIn, path) on the router.
func (p *Provider) AmountsOut(ctx context.Context, amountIn *big.Int, path domain.Path) ([]*big.Int, error) {
	ctx, span := p.tracer.Start(ctx, "uniswap.get_amounts_out",
		trace.WithAttributes(
			attribute.String("token_in", path.In().Hex()),
			attribute.String("token_out", path.Out().Hex()),
			attribute.Int("hops", path.Hops()),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	start := time.Now()
	p.metrics.quotesTotal.Add(ctx, 1)

	amounts, err := p.call(ctx, amountIn, path)
	p.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.metrics.quoteErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return nil, err
	}

	out := amounts[len(amounts)-1]
	span.SetAttributes(attribute.String("amount_out", out.String()))
	span.SetStatus(codes.Ok, "quote received")

	p.logger.Debug(ctx, "uniswap quote",
		"token_in", path.In().Hex(),
		"token_out", path.Out().Hex(),
		"amount_in", amountIn.String(),
		"amount_out", out.String(),
	)

	return amounts, nil
}

func (p *Provider) call(ctx context.Context, amountIn *big.Int, path domain.Path) ([]*big.Int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext("uniswap router"))
	}

	callData, err := p.routerABI.Pack(methodGetAmountsOut, amountIn, []common.Address(path))
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return p.caller.CallContract(ctx, ethereum.CallMsg{
			To:   &p.router,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeUniswapQuoteFailed,
			apperror.WithCause(err),
			apperror.WithContext("getAmountsOut call failed"))
	}

	outputs, err := p.routerABI.Unpack(methodGetAmountsOut, result)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode getAmountsOut"))
	}
	if len(outputs) != 1 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext(fmt.Sprintf("unexpected output length: %d", len(outputs))))
	}

	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("empty amounts"))
	}
	return amounts, nil
}
