package curve

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	pricingDomain "github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
)

type handleFixture struct {
	handle     *Handle
	chain      *fakeChain
	quoter     *fakeQuoter
	estimator  *fakeEstimator
	transactor *fakeTransactor
}

func newHandleFixture(t *testing.T) *handleFixture {
	t.Helper()

	f := &handleFixture{
		chain:      newFakeChain(t),
		quoter:     &fakeQuoter{out: map[common.Address]*big.Int{}},
		estimator:  &fakeEstimator{gas: 220_000},
		transactor: &fakeTransactor{},
	}

	l, err := NewLoader(f.chain, testLogger())
	require.NoError(t, err)
	s, err := l.Load(context.Background(), strategyAddr)
	require.NoError(t, err)

	f.handle, err = NewHandle(s, f.chain, f.quoter, f.estimator, f.transactor, testLogger())
	require.NoError(t, err)
	return f
}

func TestNewHandle_RejectsOtherKinds(t *testing.T) {
	_, err := NewHandle(&domain.Strategy{Kind: domain.KindUnknown}, newFakeChain(t), nil, nil, nil, testLogger())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedStrategy))
}

func TestHandle_ClaimableReward(t *testing.T) {
	f := newHandleFixture(t)
	f.chain.outputs[methodClaimableTokens] = []any{big.NewInt(7_000)}

	v, err := f.handle.ClaimableReward(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7_000), v.Int64())
	assert.Equal(t, []any{voterProxy}, f.chain.args(methodClaimableTokens), "claimable is read for the voter proxy")
}

func TestHandle_QuoteWant(t *testing.T) {
	f := newHandleFixture(t)
	f.quoter.out[asset.AddrDAI] = big.NewInt(1_600)
	f.chain.outputs[methodCalcTokenAmount] = []any{big.NewInt(1_500)}

	v, err := f.handle.QuoteWant(context.Background(), big.NewInt(900))
	require.NoError(t, err)
	assert.Equal(t, int64(1_500), v.Int64())

	require.Len(t, f.quoter.paths, 1)
	assert.Equal(t, pricingDomain.Path{asset.AddrCRV, asset.AddrWETH, asset.AddrDAI}, f.quoter.paths[0])
	assert.Equal(t, int64(900), f.quoter.ins[0].Int64())

	args := f.chain.args(methodCalcTokenAmount)
	require.Len(t, args, 2)
	amounts, ok := args[0].([3]*big.Int)
	require.True(t, ok)
	assert.Equal(t, int64(1_600), amounts[0].Int64())
	assert.Zero(t, amounts[1].Sign())
	assert.Zero(t, amounts[2].Sign())
	assert.Equal(t, true, args[1])
}

func TestHandle_QuoteWantZeroSkipsPool(t *testing.T) {
	f := newHandleFixture(t)
	f.quoter.out[asset.AddrDAI] = big.NewInt(0)

	v, err := f.handle.QuoteWant(context.Background(), big.NewInt(0))
	require.NoError(t, err)
	assert.Zero(t, v.Sign())
	assert.Zero(t, f.chain.count(methodCalcTokenAmount))
}

func TestHandle_QuoteWantErrors(t *testing.T) {
	f := newHandleFixture(t)
	f.quoter.err = errors.New("router down")

	_, err := f.handle.QuoteWant(context.Background(), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDataUnavailable))

	f.quoter.err = nil
	f.quoter.out[asset.AddrDAI] = big.NewInt(5)
	f.chain.fail[methodCalcTokenAmount] = errors.New("execution reverted")

	_, err = f.handle.QuoteWant(context.Background(), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDataUnavailable))
}

func TestHandle_QuoteNative(t *testing.T) {
	f := newHandleFixture(t)
	f.quoter.out[asset.AddrWETH] = big.NewInt(42)

	v, err := f.handle.QuoteNative(context.Background(), big.NewInt(900))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())
	assert.Equal(t, pricingDomain.Path{asset.AddrCRV, asset.AddrWETH}, f.quoter.paths[0])
}

func TestHandle_EstimateHarvestGas(t *testing.T) {
	f := newHandleFixture(t)

	gas, err := f.handle.EstimateHarvestGas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(220_000), gas)
	assert.Equal(t, strategist, f.estimator.from, "estimated from the strategist")
	assert.Equal(t, strategyAddr, f.estimator.to)
	assert.Equal(t, mustABI(t, StrategyABI).Methods[methodHarvest].ID, f.estimator.data)

	f.estimator.err = apperror.New(apperror.CodeGasEstimationFailed)
	_, err = f.handle.EstimateHarvestGas(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDataUnavailable))
}

func TestHandle_Harvest(t *testing.T) {
	f := newHandleFixture(t)
	f.transactor.receipt = &blockchainDomain.Receipt{
		TxHash:      common.HexToHash("0xbeef"),
		BlockNumber: 11_000_001,
		GasUsed:     180_000,
		Logs: []*types.Log{
			harvestedLog(t, common.HexToAddress("0x0badbeef"), 1, 1),
			harvestedLog(t, strategyAddr, 1_450, 90_000),
		},
	}

	receipt, err := f.handle.Harvest(context.Background(), big.NewInt(50_000_000_000))
	require.NoError(t, err)

	require.Len(t, f.transactor.calls, 1)
	call := f.transactor.calls[0]
	assert.Equal(t, strategyAddr, call.To)
	assert.Equal(t, int64(50_000_000_000), call.GasPrice.Int64())
	assert.Zero(t, call.GasLimit)

	assert.Equal(t, common.HexToHash("0xbeef"), receipt.TxHash)
	assert.Equal(t, uint64(11_000_001), receipt.BlockNumber)
	assert.Equal(t, uint64(180_000), receipt.GasUsed)
	require.NotNil(t, receipt.WantEarned)
	assert.Equal(t, int64(1_450), receipt.WantEarned.Int64())
}

func TestHandle_HarvestWithoutEvent(t *testing.T) {
	f := newHandleFixture(t)
	f.transactor.receipt = &blockchainDomain.Receipt{TxHash: common.HexToHash("0x01")}

	receipt, err := f.handle.Harvest(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.Nil(t, receipt.WantEarned)
}

func TestHandle_HarvestFailure(t *testing.T) {
	f := newHandleFixture(t)
	f.transactor.err = apperror.New(apperror.CodeTransactionFailed, apperror.WithContext("reverted"))

	_, err := f.handle.Harvest(context.Background(), big.NewInt(1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionFailed))
}
