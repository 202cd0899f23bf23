package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apm"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

const instrumentationName = "github.com/fd1az/harvest-keeper/business/harvest"

// DefaultPostCycleDelay is the pause after each processed block.
const DefaultPostCycleDelay = 600 * time.Second

// ErrNothingToKeep is returned by Run when no strategy is managed.
var ErrNothingToKeep = apperror.New(apperror.CodeNothingToKeep,
	apperror.WithContext("nothing to keep"))

// KeeperConfig holds loop timing.
type KeeperConfig struct {
	PostCycleDelay time.Duration
}

type keeperMetrics struct {
	cycles      metric.Int64Counter
	evaluations metric.Int64Counter
	harvests    metric.Int64Counter
	gasPrice    metric.Float64Gauge
}

// Keeper evaluates every managed strategy once per block and harvests
// the ones whose triggers all pass.
//
// Strategies are processed sequentially in load order on the caller's
// goroutine. The state store is read and written only from here, which is
// the single-writer assumption the file store relies on.
type Keeper struct {
	blocks    BlockSource
	gas       GasSampler
	evaluator *Evaluator
	state     StateStore
	ledger    Ledger
	handles   []StrategyHandle

	cfg     KeeperConfig
	logger  logger.LoggerInterface
	tracer  apm.Tracer
	metrics *keeperMetrics
	now     func() time.Time

	lastCycle atomic.Int64 // unix nanoseconds of the last processed block
}

// NewKeeper builds the loop over an explicit managed-strategy set.
func NewKeeper(
	blocks BlockSource,
	gas GasSampler,
	evaluator *Evaluator,
	state StateStore,
	ledger Ledger,
	handles []StrategyHandle,
	cfg KeeperConfig,
	log logger.LoggerInterface,
) (*Keeper, error) {
	if ledger == nil {
		ledger = NopLedger{}
	}
	if cfg.PostCycleDelay < 0 {
		cfg.PostCycleDelay = 0
	}

	k := &Keeper{
		blocks:    blocks,
		gas:       gas,
		evaluator: evaluator,
		state:     state,
		ledger:    ledger,
		handles:   append([]StrategyHandle(nil), handles...),
		cfg:       cfg,
		logger:    log,
		tracer:    apm.NewTracer(instrumentationName),
		now:       time.Now,
	}

	if err := k.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return k, nil
}

func (k *Keeper) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error

	k.metrics = &keeperMetrics{}

	if k.metrics.cycles, err = meter.Int64Counter(
		"keeper_cycles_total",
		metric.WithDescription("Blocks processed by the keeper"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return err
	}

	if k.metrics.evaluations, err = meter.Int64Counter(
		"keeper_evaluations_total",
		metric.WithDescription("Strategy evaluations by verdict"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return err
	}

	if k.metrics.harvests, err = meter.Int64Counter(
		"keeper_harvests_total",
		metric.WithDescription("Harvest transactions by result"),
		metric.WithUnit("{harvest}"),
	); err != nil {
		return err
	}

	k.metrics.gasPrice, err = meter.Float64Gauge(
		"keeper_gas_price_gwei",
		metric.WithDescription("Last sampled gas price"),
		metric.WithUnit("gwei"),
	)
	return err
}

// Strategies returns the managed set in processing order.
func (k *Keeper) Strategies() []*domain.Strategy {
	out := make([]*domain.Strategy, len(k.handles))
	for i, h := range k.handles {
		out[i] = h.Strategy()
	}
	return out
}

// LastCycle returns when the last block was processed, zero before the first.
func (k *Keeper) LastCycle() time.Time {
	ns := k.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// PostCycleDelay returns the configured pause after each block.
func (k *Keeper) PostCycleDelay() time.Duration {
	return k.cfg.PostCycleDelay
}

// Run processes blocks until ctx is cancelled. An empty managed set
// returns ErrNothingToKeep without subscribing.
func (k *Keeper) Run(ctx context.Context) error {
	if len(k.handles) == 0 {
		return ErrNothingToKeep
	}

	blocks, err := k.blocks.SubscribeBlocks(ctx)
	if err != nil {
		return fmt.Errorf("subscribe blocks: %w", err)
	}

	k.logger.Info(ctx, "keeper started", "strategies", len(k.handles), "post_cycle_delay", k.cfg.PostCycleDelay)

	var next *blockchainDomain.Block
	for {
		block := next
		next = nil
		if block == nil {
			select {
			case <-ctx.Done():
				k.logger.Info(ctx, "keeper stopping", "reason", ctx.Err())
				return nil
			case b, ok := <-blocks:
				if !ok {
					return apperror.New(apperror.CodeEthereumSubscribeFailed,
						apperror.WithContext("block stream closed"))
				}
				block = b
			}
		}
		if block == nil {
			continue
		}

		k.ProcessBlock(ctx, block)

		if !k.pause(ctx) {
			k.logger.Info(ctx, "keeper stopping", "reason", ctx.Err())
			return nil
		}
		next = k.latest(ctx, blocks)
	}
}

// pause waits the post-cycle delay; false means ctx ended first.
func (k *Keeper) pause(ctx context.Context) bool {
	if k.cfg.PostCycleDelay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(k.cfg.PostCycleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// latest drains the buffered blocks and returns the newest, or nil.
func (k *Keeper) latest(ctx context.Context, blocks <-chan *blockchainDomain.Block) *blockchainDomain.Block {
	var newest *blockchainDomain.Block
	skipped := 0
	for {
		select {
		case b, ok := <-blocks:
			if !ok {
				return newest
			}
			if newest != nil {
				skipped++
			}
			if b != nil {
				newest = b
			}
		default:
			if skipped > 0 {
				k.logger.Debug(ctx, "skipped stale blocks", "count", skipped)
			}
			return newest
		}
	}
}

// ProcessBlock evaluates every strategy against block. Failures are
// isolated per strategy.
func (k *Keeper) ProcessBlock(ctx context.Context, block *blockchainDomain.Block) {
	ctx, span := k.tracer.StartSpanFromContext(ctx, "keeper.process_block")
	defer span.End()
	span.SetAttributes(attribute.Int64("block", int64(block.Number)))

	k.metrics.cycles.Add(ctx, 1)
	k.logger.Info(ctx, "new block", "number", block.Number)

	for _, h := range k.handles {
		if ctx.Err() != nil {
			return
		}
		k.processStrategy(ctx, block, h)
	}
	k.lastCycle.Store(k.now().UnixNano())
	span.Ok("processed")
}

func (k *Keeper) processStrategy(ctx context.Context, block *blockchainDomain.Block, h StrategyHandle) {
	s := h.Strategy()

	ctx, span := k.tracer.StartSpanFromContext(ctx, "keeper.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("strategy", s.Address.Hex()),
		attribute.String("kind", s.Kind.String()),
	)

	gasPrice, err := callWithTimeout(ctx, k.evaluator.cfg.CallTimeout, k.gas.SampleGasPrice)
	if err != nil {
		k.countEvaluation(ctx, "skipped")
		span.NoticeError(err)
		k.logger.Warn(ctx, "gas price unavailable, skipping strategy", "strategy", s.String(), "error", err)
		return
	}
	gwei, _ := gasPrice.Gwei().Float64()
	k.metrics.gasPrice.Record(ctx, gwei)
	k.logger.Info(ctx, "gas price", "gwei", gasPrice.Gwei().String())

	last, err := k.state.LastHarvest(ctx, s.ID())
	if err != nil {
		k.countEvaluation(ctx, "skipped")
		span.NoticeError(err)
		k.logger.Warn(ctx, "harvest state unavailable, skipping strategy", "strategy", s.String(), "error", err)
		return
	}

	verdict := k.evaluator.Decide(ctx, h, gasPrice.Wei, last)
	k.countEvaluation(ctx, verdict.Label())
	span.SetAttributes(attribute.String("verdict", verdict.Label()))
	if !verdict.Harvest {
		span.Ok(verdict.Label())
		return
	}

	k.harvest(ctx, block, h, gasPrice.Wei, verdict)
	span.Ok("harvested")
}

func (k *Keeper) harvest(ctx context.Context, block *blockchainDomain.Block, h StrategyHandle, gasPrice *big.Int, v domain.Verdict) {
	s := h.Strategy()

	ctx, span := k.tracer.StartSpanFromContext(ctx, "keeper.harvest")
	defer span.End()

	k.logger.Info(ctx, "harvesting", "strategy", s.String(), "gas_price", gasPrice.String(), "gas_limit", v.GasLimit)

	attempt := domain.Attempt{
		ID:          uuid.NewString(),
		Strategy:    s.Address,
		BlockNumber: block.Number,
		GasPrice:    new(big.Int).Set(gasPrice),
		GasLimit:    v.GasLimit,
	}

	receipt, err := h.Harvest(ctx, gasPrice)
	attempt.Timestamp = k.now()
	if apperror.HasCode(err, apperror.CodeTransactionPending) {
		k.metrics.harvests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "pending")))
		k.logger.Warn(ctx, "previous keeper transaction still pending, skipping harvest",
			"strategy", s.String(), "error", err)
		span.Ok("pending")
		return
	}
	if err != nil {
		reason := apperror.CodeOf(err)
		if !apperror.HasCode(err, apperror.CodeTransactionFailed) {
			err = apperror.New(apperror.CodeTransactionFailed,
				apperror.WithCause(err),
				apperror.WithContext("harvest "+s.Address.Hex()))
		}
		attempt.Error = err.Error()
		k.metrics.harvests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("result", "failed"),
			attribute.String("reason", string(reason)),
		))
		span.NoticeError(err)
		k.logger.Error(ctx, "harvest failed", "strategy", s.String(), "error", err)
		k.record(ctx, attempt)
		return
	}

	attempt.Success = true
	attempt.TxHash = receipt.TxHash
	attempt.WantEarned = receipt.WantEarned
	attempt.GasUsed = receipt.GasUsed

	k.metrics.harvests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	k.logger.Info(ctx, "harvested",
		"strategy", s.String(),
		"tx_hash", receipt.TxHash.Hex(),
		"want_earned", k.evaluator.amount(s.Want, receipt.WantEarned),
		"gas_used", receipt.GasUsed,
	)

	if err := k.state.RecordHarvest(ctx, s.ID(), attempt.Timestamp.Unix()); err != nil {
		span.NoticeError(err)
		k.logger.Error(ctx, "failed to record harvest", "strategy", s.String(), "error", err)
	}
	k.record(ctx, attempt)
	span.Ok("harvested")
}

func (k *Keeper) record(ctx context.Context, attempt domain.Attempt) {
	if err := k.ledger.RecordAttempt(ctx, attempt); err != nil {
		k.logger.Warn(ctx, "failed to write ledger", "attempt", attempt.ID, "error", err)
	}
}

func (k *Keeper) countEvaluation(ctx context.Context, verdict string) {
	k.metrics.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// IsNothingToKeep reports whether err is ErrNothingToKeep.
func IsNothingToKeep(err error) bool {
	return errors.Is(err, ErrNothingToKeep)
}
