package curve

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	pricingDomain "github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

var (
	strategyAddr = common.HexToAddress("0xC59601F0CC49baa266891b7fc63d2D5FE097A79D")
	strategist   = common.HexToAddress("0x2D407dDb06311396fE14D4b49da5F0471447d45C")
	voterProxy   = common.HexToAddress("0xF147b8125d2ef93FB6965Db97D6746952a133934")
	gaugeAddr    = common.HexToAddress("0xbFcF63294aD7105dEa65aA58F8AE5BE2D9d0952A")
	poolAddr     = common.HexToAddress("0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7")
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func mustABI(t *testing.T, def string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)
	return parsed
}

// fakeChain answers eth_call for the strategy, gauge and pool contracts by
// decoding the selector against their ABIs.
type fakeChain struct {
	t         *testing.T
	contracts map[common.Address]abi.ABI
	outputs   map[string][]any
	coins     []common.Address
	fail      map[string]error

	mu       sync.Mutex
	calls    []string
	lastArgs map[string][]any
}

func newFakeChain(t *testing.T) *fakeChain {
	strategy := mustABI(t, StrategyABI)
	return &fakeChain{
		t: t,
		contracts: map[common.Address]abi.ABI{
			strategyAddr: strategy,
			gaugeAddr:    mustABI(t, GaugeABI),
			poolAddr:     mustABI(t, PoolABI),
		},
		outputs: map[string][]any{
			methodGetName:          {"StrategyCurve3CrvVoterProxy"},
			methodStrategist:       {strategist},
			methodWant:             {asset.Addr3CRV},
			methodVoter:            {voterProxy},
			methodGauge:            {gaugeAddr},
			methodCurve:            {poolAddr},
			methodCRV:              {asset.AddrCRV},
			methodWETH:             {asset.AddrWETH},
			methodDAI:              {asset.AddrDAI},
			methodFeeDenominator:   {big.NewInt(10000)},
			methodKeepCRV:          {big.NewInt(1000)},
			methodPerformanceFee:   {big.NewInt(500)},
			methodStrategistReward: {big.NewInt(1000)},
			methodClaimableTokens:  {big.NewInt(0)},
			methodCalcTokenAmount:  {big.NewInt(0)},
		},
		coins:    []common.Address{asset.AddrDAI, asset.AddrUSDC, asset.AddrUSDT},
		fail:     make(map[string]error),
		lastArgs: make(map[string][]any),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	contract, ok := f.contracts[*msg.To]
	if !ok {
		return nil, errors.New("execution reverted: no code at " + msg.To.Hex())
	}
	m, err := contract.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	args, err := m.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)

	f.mu.Lock()
	f.calls = append(f.calls, m.Name)
	f.lastArgs[m.Name] = args
	f.mu.Unlock()

	if err := f.fail[m.Name]; err != nil {
		return nil, err
	}

	if m.Name == methodCoins {
		i := int(args[0].(*big.Int).Int64())
		if i >= len(f.coins) {
			return nil, errors.New("execution reverted")
		}
		return m.Outputs.Pack(f.coins[i])
	}
	return m.Outputs.Pack(f.outputs[m.Name]...)
}

func (f *fakeChain) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeChain) args(method string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastArgs[method]
}

type fakeQuoter struct {
	out   map[common.Address]*big.Int // keyed by path output token
	err   error
	paths []pricingDomain.Path
	ins   []*big.Int
}

func (q *fakeQuoter) AmountOut(_ context.Context, amountIn *big.Int, path pricingDomain.Path) (*big.Int, error) {
	q.paths = append(q.paths, path)
	q.ins = append(q.ins, amountIn)
	if q.err != nil {
		return nil, q.err
	}
	return q.out[path.Out()], nil
}

type fakeEstimator struct {
	gas  uint64
	err  error
	from common.Address
	to   common.Address
	data []byte
}

func (e *fakeEstimator) EstimateGas(_ context.Context, from, to common.Address, data []byte) (uint64, error) {
	e.from, e.to, e.data = from, to, data
	return e.gas, e.err
}

type fakeTransactor struct {
	receipt *blockchainDomain.Receipt
	err     error
	calls   []blockchainDomain.Call
}

func (f *fakeTransactor) From() common.Address { return strategist }

func (f *fakeTransactor) Send(_ context.Context, call blockchainDomain.Call) (*blockchainDomain.Receipt, error) {
	f.calls = append(f.calls, call)
	return f.receipt, f.err
}

func harvestedLog(t *testing.T, emitter common.Address, wantEarned, lifetime int64) *types.Log {
	t.Helper()
	event := mustABI(t, StrategyABI).Events[eventHarvested]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(wantEarned), big.NewInt(lifetime))
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{event.ID},
		Data:    data,
	}
}
