package curve

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
)

func TestLoader_Load(t *testing.T) {
	chain := newFakeChain(t)
	l, err := NewLoader(chain, testLogger())
	require.NoError(t, err)

	s, err := l.Load(context.Background(), strategyAddr)
	require.NoError(t, err)

	assert.Equal(t, strategyAddr, s.Address)
	assert.Equal(t, "StrategyCurve3CrvVoterProxy", s.Name)
	assert.Equal(t, domain.KindCurveVoterProxy, s.Kind)
	assert.Equal(t, strategist, s.Strategist)
	assert.Equal(t, asset.Addr3CRV, s.Want)

	require.NotNil(t, s.Curve)
	assert.Equal(t, voterProxy, s.Curve.VoterProxy)
	assert.Equal(t, gaugeAddr, s.Curve.Gauge)
	assert.Equal(t, poolAddr, s.Curve.Pool)
	assert.Equal(t, asset.AddrCRV, s.Curve.Reward)
	assert.Equal(t, asset.AddrWETH, s.Curve.Intermediate)
	assert.Equal(t, asset.AddrDAI, s.Curve.Output)
	assert.Equal(t, 0, s.Curve.OutputIndex)

	assert.Equal(t, "10.00%", s.Fees.KeepFraction.String())
	assert.Equal(t, "5.00%", s.Fees.PerformanceFee.String())
	assert.Equal(t, "10.00%", s.Fees.StrategistReward.String())

	assert.True(t, s.ManagedBy(strategist))
	assert.False(t, s.ManagedBy(common.HexToAddress("0x01")))
}

func TestLoader_OutputCoinIndex(t *testing.T) {
	chain := newFakeChain(t)
	chain.coins = []common.Address{asset.AddrUSDC, asset.AddrDAI, asset.AddrUSDT}
	l, err := NewLoader(chain, testLogger())
	require.NoError(t, err)

	s, err := l.Load(context.Background(), strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Curve.OutputIndex)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeChain)
		code  apperror.Code
	}{
		{
			name:  "zero fee denominator",
			setup: func(c *fakeChain) { c.outputs[methodFeeDenominator] = []any{big.NewInt(0)} },
			code:  apperror.CodeInvalidState,
		},
		{
			name:  "strategist reward above one",
			setup: func(c *fakeChain) { c.outputs[methodStrategistReward] = []any{big.NewInt(20_000)} },
			code:  apperror.CodeInvalidState,
		},
		{
			name:  "output not in pool",
			setup: func(c *fakeChain) { c.coins = []common.Address{asset.AddrUSDC, asset.AddrUSDT} },
			code:  apperror.CodeContractCallFailed,
		},
		{
			name: "output missing from a full pool",
			setup: func(c *fakeChain) {
				c.coins = []common.Address{asset.AddrUSDC, asset.AddrUSDT, asset.AddrWETH}
			},
			code: apperror.CodeInvalidState,
		},
		{
			name:  "strategist call reverts",
			setup: func(c *fakeChain) { c.fail[methodStrategist] = errors.New("execution reverted") },
			code:  apperror.CodeContractCallFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain(t)
			tt.setup(chain)
			l, err := NewLoader(chain, testLogger())
			require.NoError(t, err)

			_, err = l.Load(context.Background(), strategyAddr)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoader_NotAContract(t *testing.T) {
	l, err := NewLoader(newFakeChain(t), testLogger())
	require.NoError(t, err)

	_, err = l.Load(context.Background(), common.HexToAddress("0xdead"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeContractCallFailed))
}
