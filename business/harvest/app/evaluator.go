package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// Default trigger thresholds.
const (
	DefaultInterval    = 24 * time.Hour
	DefaultMinEarnings = 1000
	DefaultCallTimeout = 30 * time.Second
)

// EvaluatorConfig holds the trigger thresholds.
type EvaluatorConfig struct {
	Interval    time.Duration
	MinEarnings *big.Int // in want token smallest units
	CallTimeout time.Duration
}

// Evaluator decides whether a strategy should be harvested now.
//
// The three triggers are checked in order of cost: time (local), earnings
// (claimable read plus a want quote) and gas cost (native quote plus a gas
// estimate). A negative stage stops evaluation.
type Evaluator struct {
	cfg      EvaluatorConfig
	registry *asset.Registry
	logger   logger.LoggerInterface
	now      func() time.Time
}

// NewEvaluator creates an Evaluator. Zero config values take the defaults.
func NewEvaluator(cfg EvaluatorConfig, registry *asset.Registry, log logger.LoggerInterface) *Evaluator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinEarnings == nil {
		cfg.MinEarnings = big.NewInt(DefaultMinEarnings)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if registry == nil {
		registry = asset.DefaultRegistry()
	}
	return &Evaluator{
		cfg:      cfg,
		registry: registry,
		logger:   log,
		now:      time.Now,
	}
}

// Decide evaluates the triggers. It never returns an error: a failed
// external read yields a Skipped verdict carrying the cause.
func (e *Evaluator) Decide(ctx context.Context, h StrategyHandle, gasPrice *big.Int, lastHarvest int64) domain.Verdict {
	s := h.Strategy()
	now := e.now()
	last := time.Unix(lastHarvest, 0)

	v := domain.Verdict{SinceLast: now.Sub(last)}

	v.Time = now.Unix()-lastHarvest >= int64(e.cfg.Interval/time.Second)
	e.logger.Info(ctx, "since last harvest",
		"strategy", s.String(),
		"last", humanize.RelTime(last, now, "ago", "from now"),
		"trigger", v.Time,
	)
	if !v.Time {
		return v
	}

	ok, err := e.earnings(ctx, h, &v)
	if err != nil {
		return e.skip(ctx, s, v, err)
	}
	v.Earnings = ok
	if !ok {
		return v
	}

	ok, err = e.gasCost(ctx, h, gasPrice, &v)
	if err != nil {
		return e.skip(ctx, s, v, err)
	}
	v.GasCost = ok
	v.Harvest = v.Time && v.Earnings && v.GasCost
	return v
}

func (e *Evaluator) earnings(ctx context.Context, h StrategyHandle, v *domain.Verdict) (bool, error) {
	s := h.Strategy()

	reduced, err := e.reducedReward(ctx, h, v)
	if err != nil {
		return false, err
	}
	if reduced.Sign() == 0 {
		e.logger.Info(ctx, "nothing claimable", "strategy", s.String())
		return false, nil
	}

	output, err := callWithTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*big.Int, error) {
		return h.QuoteWant(ctx, reduced)
	})
	if err != nil {
		return false, apperror.Unavailable("quote want", err)
	}
	if output == nil {
		return false, apperror.Unavailable("quote want", errors.New("empty quote"))
	}
	v.Output = output

	ok := output.Cmp(e.cfg.MinEarnings) >= 0
	e.logger.Info(ctx, "earnings trigger",
		"strategy", s.String(),
		"output", e.amount(s.Want, output),
		"min", e.amount(s.Want, e.cfg.MinEarnings),
		"trigger", ok,
	)
	return ok, nil
}

// gasCost compares the strategist reward, valued in native units, with
// gasPrice x gasLimit. The reward is not converted a second time to cover
// the caller's own swap back to the fee currency.
func (e *Evaluator) gasCost(ctx context.Context, h StrategyHandle, gasPrice *big.Int, v *domain.Verdict) (bool, error) {
	s := h.Strategy()

	if gasPrice == nil || gasPrice.Sign() < 0 {
		return false, apperror.Unavailable("gas price", errors.New("missing gas price"))
	}

	reduced, err := e.reducedReward(ctx, h, v)
	if err != nil {
		return false, err
	}
	if reduced.Sign() == 0 {
		return false, nil
	}

	native, err := callWithTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) (*big.Int, error) {
		return h.QuoteNative(ctx, reduced)
	})
	if err != nil {
		return false, apperror.Unavailable("quote native", err)
	}
	if native == nil {
		return false, apperror.Unavailable("quote native", errors.New("empty quote"))
	}
	reward := s.Fees.StrategistReward.Apply(native)
	v.StrategistReward = reward

	gasLimit, err := callWithTimeout(ctx, e.cfg.CallTimeout, h.EstimateHarvestGas)
	if err != nil {
		return false, apperror.Unavailable("estimate harvest gas", err)
	}
	v.GasLimit = gasLimit

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	v.Cost = cost

	ok := reward.Cmp(cost) >= 0
	e.logger.Info(ctx, "gas cost trigger",
		"strategy", s.String(),
		"strategist_reward", asset.NewAmount(asset.ETH, reward).String(),
		"gas_cost", asset.NewAmount(asset.ETH, cost).String(),
		"gas_limit", gasLimit,
		"keeper_profit", decimal.NewFromBigInt(new(big.Int).Sub(reward, cost), -int32(asset.ETH.Decimals())).String(),
		"trigger", ok,
	)
	return ok, nil
}

// reducedReward reads the claimable reward and removes the kept share.
func (e *Evaluator) reducedReward(ctx context.Context, h StrategyHandle, v *domain.Verdict) (*big.Int, error) {
	s := h.Strategy()

	claimable, err := callWithTimeout(ctx, e.cfg.CallTimeout, h.ClaimableReward)
	if err != nil {
		return nil, apperror.Unavailable("claimable reward", err)
	}
	if claimable == nil || claimable.Sign() < 0 {
		return nil, apperror.Unavailable("claimable reward", errors.New("invalid claimable amount"))
	}
	v.Claimable = claimable

	e.logger.Debug(ctx, "claimable reward",
		"strategy", s.String(),
		"claimable", e.amount(s.RewardToken(), claimable),
		"keep", s.Fees.KeepFraction.String(),
	)
	return s.Fees.KeepFraction.Complement().Apply(claimable), nil
}

func (e *Evaluator) skip(ctx context.Context, s *domain.Strategy, v domain.Verdict, err error) domain.Verdict {
	v.Earnings = false
	v.GasCost = false
	v.Harvest = false
	v.Skipped = true
	v.Err = err
	e.logger.Warn(ctx, "skipping strategy this round", "strategy", s.String(), "error", err)
	return v
}

func (e *Evaluator) amount(token common.Address, raw *big.Int) string {
	return asset.NewAmount(e.registry.TokenOrUnknown(asset.ChainIDEthereum, token), raw).String()
}

// callWithTimeout runs fn under timeout and returns as soon as the deadline
// passes, even when fn ignores its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
