package curve

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// Loader reads a voter-proxy strategy's addresses and fee settings from chain.
type Loader struct {
	b      *binding
	logger logger.LoggerInterface
}

// NewLoader creates a loader over caller.
func NewLoader(caller ethereum.ContractCaller, log logger.LoggerInterface) (*Loader, error) {
	b, err := newBinding(caller, log)
	if err != nil {
		return nil, err
	}
	return &Loader{b: b, logger: log}, nil
}

// Load builds the immutable Strategy for addr.
func (l *Loader) Load(ctx context.Context, addr common.Address) (*domain.Strategy, error) {
	s := &domain.Strategy{
		Address: addr,
		Kind:    domain.KindCurveVoterProxy,
		Curve:   &domain.CurveParams{},
	}

	name, err := l.b.readString(ctx, l.b.strategy, addr, methodGetName)
	if err != nil {
		return nil, err
	}
	s.Name = name

	for _, f := range []struct {
		method string
		dst    *common.Address
	}{
		{methodStrategist, &s.Strategist},
		{methodWant, &s.Want},
		{methodVoter, &s.Curve.VoterProxy},
		{methodGauge, &s.Curve.Gauge},
		{methodCurve, &s.Curve.Pool},
		{methodCRV, &s.Curve.Reward},
		{methodWETH, &s.Curve.Intermediate},
		{methodDAI, &s.Curve.Output},
	} {
		v, err := l.b.readAddress(ctx, l.b.strategy, addr, f.method)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	if s.Fees, err = l.fees(ctx, addr); err != nil {
		return nil, err
	}
	if s.Curve.OutputIndex, err = l.coinIndex(ctx, s.Curve.Pool, s.Curve.Output); err != nil {
		return nil, err
	}

	l.logger.Info(ctx, "strategy loaded",
		"strategy", s.Name,
		"address", addr.Hex(),
		"strategist", s.Strategist.Hex(),
		"keep_crv", s.Fees.KeepFraction.String(),
		"performance_fee", s.Fees.PerformanceFee.String(),
		"strategist_reward", s.Fees.StrategistReward.String(),
	)
	return s, nil
}

func (l *Loader) fees(ctx context.Context, addr common.Address) (domain.FeeParams, error) {
	den, err := l.b.readUint(ctx, l.b.strategy, addr, methodFeeDenominator)
	if err != nil {
		return domain.FeeParams{}, err
	}

	var fees domain.FeeParams
	for _, f := range []struct {
		method string
		dst    *domain.Ratio
	}{
		{methodKeepCRV, &fees.KeepFraction},
		{methodPerformanceFee, &fees.PerformanceFee},
		{methodStrategistReward, &fees.StrategistReward},
	} {
		num, err := l.b.readUint(ctx, l.b.strategy, addr, f.method)
		if err != nil {
			return domain.FeeParams{}, err
		}
		r, err := domain.NewRatio(num, den)
		if err != nil {
			return domain.FeeParams{}, apperror.New(apperror.CodeInvalidState,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("%s on %s", f.method, addr.Hex())))
		}
		*f.dst = r
	}
	return fees, nil
}

// coinIndex finds token among the pool's coins.
func (l *Loader) coinIndex(ctx context.Context, pool, token common.Address) (int, error) {
	for i := 0; i < poolCoins; i++ {
		coin, err := l.b.readAddress(ctx, l.b.pool, pool, methodCoins, big.NewInt(int64(i)))
		if err != nil {
			return 0, err
		}
		if coin == token {
			return i, nil
		}
	}
	return 0, apperror.New(apperror.CodeInvalidState,
		apperror.WithContext(fmt.Sprintf("%s is not a coin of pool %s", token.Hex(), pool.Hex())))
}
