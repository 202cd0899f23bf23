package app

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
)

func newTestEvaluator(now int64) *Evaluator {
	e := NewEvaluator(EvaluatorConfig{
		Interval:    86400 * time.Second,
		MinEarnings: big.NewInt(1000),
		CallTimeout: time.Second,
	}, nil, testLogger())
	e.now = func() time.Time { return time.Unix(now, 0) }
	return e
}

func TestEvaluator_TimeTriggerShortCircuits(t *testing.T) {
	h := scenarioB("0x01")
	e := newTestEvaluator(1000 + 86399)

	v := e.Decide(context.Background(), h, gwei(50), 1000)

	assert.False(t, v.Time)
	assert.False(t, v.Harvest)
	assert.False(t, v.Skipped)
	assert.Equal(t, "time", v.Label())
	assert.Zero(t, h.claimCalls.Load())
	assert.Zero(t, h.wantCalls.Load())
	assert.Zero(t, h.nativeCalls.Load())
	assert.Zero(t, h.gasCalls.Load())
}

func TestEvaluator_TimeTriggerBoundary(t *testing.T) {
	h := scenarioB("0x01")
	e := newTestEvaluator(1000 + 86400)

	v := e.Decide(context.Background(), h, gwei(50), 1000)
	assert.True(t, v.Time)
}

func TestEvaluator_ScenarioA_NothingClaimable(t *testing.T) {
	h := scenarioB("0x01")
	h.claimable = big.NewInt(0)
	e := newTestEvaluator(86400)

	v := e.Decide(context.Background(), h, gwei(50), 0)

	assert.True(t, v.Time)
	assert.False(t, v.Earnings)
	assert.False(t, v.Harvest)
	assert.False(t, v.Skipped)
	assert.Equal(t, int32(1), h.claimCalls.Load())
	assert.Zero(t, h.wantCalls.Load())
	assert.Zero(t, h.nativeCalls.Load())
	assert.Zero(t, h.gasCalls.Load())
}

func TestEvaluator_ScenarioB_Harvest(t *testing.T) {
	h := scenarioB("0x01")
	e := newTestEvaluator(200_000)

	v := e.Decide(context.Background(), h, gwei(50), 0)

	assert.True(t, v.Time)
	assert.True(t, v.Earnings)
	assert.True(t, v.GasCost)
	assert.True(t, v.Harvest)
	assert.Equal(t, "harvest", v.Label())
	assert.Equal(t, ether(1, 20), v.StrategistReward)
	assert.Equal(t, ether(1, 100), v.Cost)
	assert.Equal(t, uint64(200_000), v.GasLimit)
	assert.Equal(t, int32(2), h.claimCalls.Load(), "claimable is read again for the gas stage")
	assert.Equal(t, int32(1), h.wantCalls.Load())
	assert.Equal(t, int32(1), h.nativeCalls.Load())
	assert.Equal(t, int32(1), h.gasCalls.Load())
}

func TestEvaluator_ScenarioC_GasTooExpensive(t *testing.T) {
	h := scenarioB("0x01")
	e := newTestEvaluator(200_000)

	v := e.Decide(context.Background(), h, gwei(500), 0)

	assert.True(t, v.Earnings)
	assert.False(t, v.GasCost)
	assert.False(t, v.Harvest)
	assert.Equal(t, "gas", v.Label())
	assert.Equal(t, ether(1, 10), v.Cost)
}

func TestEvaluator_GasBoundary(t *testing.T) {
	// 10% of native must cover 50 gwei x 200000 = 1e16 wei.
	tests := []struct {
		name   string
		native *big.Int
		want   bool
	}{
		{"equal", ether(1, 10), true},
		{"one wei short", new(big.Int).Sub(ether(1, 10), big.NewInt(10)), false},
		{"above", ether(1, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := scenarioB("0x01")
			h.native = tt.native
			e := newTestEvaluator(200_000)

			v := e.Decide(context.Background(), h, gwei(50), 0)
			assert.Equal(t, tt.want, v.GasCost)
			assert.Equal(t, tt.want, v.Harvest)
		})
	}
}

func TestEvaluator_EarningsBelowMinimum(t *testing.T) {
	h := scenarioB("0x01")
	h.want = big.NewInt(999)
	e := newTestEvaluator(200_000)

	v := e.Decide(context.Background(), h, gwei(50), 0)

	assert.False(t, v.Earnings)
	assert.Equal(t, "earnings", v.Label())
	assert.Zero(t, h.nativeCalls.Load())
	assert.Zero(t, h.gasCalls.Load())
}

func TestEvaluator_KeepFractionReducesQuotedAmount(t *testing.T) {
	h := scenarioB("0x01")
	h.claimable = big.NewInt(1000)
	h.strategy.Fees.KeepFraction = domain.MustRatio(1000, 10000)
	e := newTestEvaluator(200_000)

	e.Decide(context.Background(), h, gwei(50), 0)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, big.NewInt(900), h.quotedWant)
}

func TestEvaluator_FailuresSkip(t *testing.T) {
	boom := errors.New("node unreachable")

	tests := []struct {
		name  string
		setup func(h *fakeHandle)
	}{
		{"claimable", func(h *fakeHandle) { h.claimErr = boom }},
		{"quote want", func(h *fakeHandle) { h.wantErr = boom }},
		{"quote native", func(h *fakeHandle) { h.natErr = boom }},
		{"estimate gas", func(h *fakeHandle) { h.gasErr = boom }},
		{"nil quote", func(h *fakeHandle) { h.want = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := scenarioB("0x01")
			tt.setup(h)
			e := newTestEvaluator(200_000)

			v := e.Decide(context.Background(), h, gwei(50), 0)

			assert.True(t, v.Skipped)
			assert.False(t, v.Harvest)
			assert.Equal(t, "skipped", v.Label())
			require.Error(t, v.Err)
			assert.True(t, apperror.HasCode(v.Err, apperror.CodeDataUnavailable))
		})
	}
}

func TestEvaluator_CallTimeoutSkips(t *testing.T) {
	h := scenarioB("0x01")
	h.claimHang = 500 * time.Millisecond

	e := newTestEvaluator(200_000)
	e.cfg.CallTimeout = 20 * time.Millisecond

	start := time.Now()
	v := e.Decide(context.Background(), h, gwei(50), 0)

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.True(t, v.Skipped)
	assert.ErrorIs(t, v.Err, context.DeadlineExceeded)
}

func TestEvaluator_ZeroIntervalUsesDefault(t *testing.T) {
	h := scenarioB("0x01")
	e := NewEvaluator(EvaluatorConfig{MinEarnings: big.NewInt(1000)}, nil, testLogger())
	e.now = func() time.Time { return time.Unix(1000+3600, 0) }

	v := e.Decide(context.Background(), h, gwei(50), 1000)

	assert.Equal(t, DefaultInterval, e.cfg.Interval)
	assert.False(t, v.Time)
	assert.Zero(t, h.claimCalls.Load())
}

func TestEvaluator_UnsetKeepFractionKeepsNothing(t *testing.T) {
	h := scenarioB("0x01")
	h.strategy.Fees = domain.FeeParams{StrategistReward: domain.MustRatio(1000, 10000)}
	e := newTestEvaluator(200_000)

	v := e.Decide(context.Background(), h, gwei(50), 0)

	assert.True(t, v.Earnings)
	assert.True(t, v.Harvest)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, ether(10, 1), h.quotedWant)
}
