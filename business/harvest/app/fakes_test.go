package app

import (
	"context"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func ether(num, den int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(num), big.NewInt(1_000_000_000_000_000_000))
	return v.Quo(v, big.NewInt(den))
}

func testStrategy(addr string) *domain.Strategy {
	return &domain.Strategy{
		Address:    common.HexToAddress(addr),
		Name:       "StrategyCurve3CrvVoterProxy",
		Kind:       domain.KindCurveVoterProxy,
		Strategist: common.HexToAddress("0xaaaa"),
		Want:       asset.Addr3CRV,
		Fees: domain.FeeParams{
			KeepFraction:     domain.MustRatio(0, 10000),
			PerformanceFee:   domain.MustRatio(500, 10000),
			StrategistReward: domain.MustRatio(1000, 10000),
		},
		Curve: &domain.CurveParams{
			Reward:       asset.AddrCRV,
			Intermediate: asset.AddrWETH,
			Output:       asset.AddrDAI,
		},
	}
}

type fakeHandle struct {
	strategy *domain.Strategy

	claimable *big.Int
	claimErr  error
	claimHang time.Duration

	want    *big.Int
	wantErr error
	native  *big.Int
	natErr  error
	gas     uint64
	gasErr  error

	harvestErr error
	wantEarned *big.Int

	claimCalls   atomic.Int32
	wantCalls    atomic.Int32
	nativeCalls  atomic.Int32
	gasCalls     atomic.Int32
	harvestCalls atomic.Int32

	mu          sync.Mutex
	quotedWant  *big.Int
	harvestedAt *big.Int
}

func (f *fakeHandle) Strategy() *domain.Strategy { return f.strategy }

func (f *fakeHandle) ClaimableReward(context.Context) (*big.Int, error) {
	f.claimCalls.Add(1)
	if f.claimHang > 0 {
		time.Sleep(f.claimHang)
	}
	return f.claimable, f.claimErr
}

func (f *fakeHandle) QuoteWant(_ context.Context, reward *big.Int) (*big.Int, error) {
	f.wantCalls.Add(1)
	f.mu.Lock()
	f.quotedWant = reward
	f.mu.Unlock()
	return f.want, f.wantErr
}

func (f *fakeHandle) QuoteNative(context.Context, *big.Int) (*big.Int, error) {
	f.nativeCalls.Add(1)
	return f.native, f.natErr
}

func (f *fakeHandle) EstimateHarvestGas(context.Context) (uint64, error) {
	f.gasCalls.Add(1)
	return f.gas, f.gasErr
}

func (f *fakeHandle) Harvest(_ context.Context, gasPrice *big.Int) (*domain.HarvestReceipt, error) {
	f.harvestCalls.Add(1)
	f.mu.Lock()
	f.harvestedAt = gasPrice
	f.mu.Unlock()
	if f.harvestErr != nil {
		return nil, f.harvestErr
	}
	return &domain.HarvestReceipt{
		TxHash:      common.HexToHash("0xbeef"),
		BlockNumber: 100,
		WantEarned:  f.wantEarned,
		GasUsed:     180_000,
	}, nil
}

// scenarioB is profitable: output 1500 >= 1000 and a 0.05 ETH reward
// against 50 gwei x 200000 = 0.01 ETH of gas.
func scenarioB(addr string) *fakeHandle {
	return &fakeHandle{
		strategy:   testStrategy(addr),
		claimable:  ether(10, 1),
		want:       big.NewInt(1500),
		native:     ether(1, 2),
		gas:        200_000,
		wantEarned: big.NewInt(1450),
	}
}

type memoryState struct {
	mu       sync.Mutex
	data     map[common.Address]int64
	readErr  error
	writeErr error
	writes   int
}

func newMemoryState() *memoryState {
	return &memoryState{data: make(map[common.Address]int64)}
}

func (m *memoryState) LastHarvest(_ context.Context, id common.Address) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.data[id], nil
}

func (m *memoryState) RecordHarvest(_ context.Context, id common.Address, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	if ts > m.data[id] {
		m.data[id] = ts
	}
	return nil
}

type fakeGas struct {
	prices []*big.Int // consumed in order, last one repeats
	err    error
	hang   bool // block until the caller's deadline
	calls  atomic.Int32
}

func (f *fakeGas) SampleGasPrice(ctx context.Context) (*blockchainDomain.GasPrice, error) {
	i := int(f.calls.Add(1)) - 1
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if i >= len(f.prices) {
		i = len(f.prices) - 1
	}
	return blockchainDomain.NewGasPrice(f.prices[i], time.Unix(0, 0)), nil
}

type fakeBlocks struct {
	ch  chan *blockchainDomain.Block
	err error
}

func (f *fakeBlocks) SubscribeBlocks(context.Context) (<-chan *blockchainDomain.Block, error) {
	return f.ch, f.err
}

type recordingLedger struct {
	mu       sync.Mutex
	attempts []domain.Attempt
	err      error
}

func (l *recordingLedger) RecordAttempt(_ context.Context, a domain.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
	return l.err
}
