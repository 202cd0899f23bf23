package uniswap

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// fakeRouter decodes getAmountsOut calls and answers with a fixed rate per hop.
type fakeRouter struct {
	t     *testing.T
	rate  int64
	err   error
	calls int
	to    common.Address
}

func (f *fakeRouter) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	require.Nil(f.t, block)
	f.to = *msg.To

	parsed, err := abi.JSON(strings.NewReader(RouterV2ABI))
	require.NoError(f.t, err)
	method := parsed.Methods[methodGetAmountsOut]

	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	amountIn := args[0].(*big.Int)
	path := args[1].([]common.Address)

	amounts := []*big.Int{new(big.Int).Set(amountIn)}
	for i := 1; i < len(path); i++ {
		next := new(big.Int).Mul(amounts[i-1], big.NewInt(f.rate))
		amounts = append(amounts, next)
	}
	return method.Outputs.Pack(amounts)
}

func newTestProvider(t *testing.T, router *fakeRouter) *Provider {
	t.Helper()
	p, err := NewProvider(router, RouterV2Mainnet, 0, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)
	return p
}

func TestProvider_AmountsOut(t *testing.T) {
	router := &fakeRouter{t: t, rate: 2}
	p := newTestProvider(t, router)

	path := domain.NewPath(asset.CRV, asset.WETH, asset.DAI)
	amounts, err := p.AmountsOut(context.Background(), big.NewInt(500), path)
	require.NoError(t, err)

	require.Len(t, amounts, 3)
	assert.Equal(t, "500", amounts[0].String())
	assert.Equal(t, "1000", amounts[1].String())
	assert.Equal(t, "2000", amounts[2].String())
	assert.Equal(t, RouterV2Mainnet, router.to)
	assert.Equal(t, 1, router.calls)
}

func TestProvider_CallFailure(t *testing.T) {
	router := &fakeRouter{t: t, err: errors.New("execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY")}
	p := newTestProvider(t, router)

	_, err := p.AmountsOut(context.Background(), big.NewInt(1), domain.NewPath(asset.CRV, asset.WETH))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUniswapQuoteFailed))
}

type garbageCaller struct{}

func (garbageCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return []byte{0x01, 0x02}, nil
}

func TestProvider_UndecodableResult(t *testing.T) {
	p, err := NewProvider(garbageCaller{}, RouterV2Mainnet, 0, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)

	_, err = p.AmountsOut(context.Background(), big.NewInt(1), domain.NewPath(asset.CRV, asset.WETH))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidQuote))
}
