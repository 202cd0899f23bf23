package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
)

type fakeQuoter struct {
	amounts []*big.Int
	err     error
	calls   int
	gotIn   *big.Int
	gotPath domain.Path
}

func (f *fakeQuoter) AmountsOut(_ context.Context, amountIn *big.Int, path domain.Path) ([]*big.Int, error) {
	f.calls++
	f.gotIn = amountIn
	f.gotPath = path
	return f.amounts, f.err
}

func TestPricingService_QuoteReturnsLastHop(t *testing.T) {
	q := &fakeQuoter{amounts: []*big.Int{big.NewInt(1000), big.NewInt(3), big.NewInt(7500)}}
	svc := NewPricingService(q, asset.DefaultRegistry())

	path := domain.NewPath(asset.CRV, asset.WETH, asset.DAI)
	quote, err := svc.Quote(context.Background(), big.NewInt(1000), path)
	require.NoError(t, err)

	assert.Equal(t, 1, q.calls)
	assert.Equal(t, path, q.gotPath)
	assert.Equal(t, "7500", quote.Out().String())
	assert.Equal(t, "DAI", quote.AmountOut.Asset().Symbol())
	assert.Equal(t, "CRV", quote.AmountIn.Asset().Symbol())
	assert.Len(t, quote.Amounts, 3)

	out, err := svc.AmountOut(context.Background(), big.NewInt(1000), path)
	require.NoError(t, err)
	assert.Equal(t, "7500", out.String())
}

func TestPricingService_ShortPathRejected(t *testing.T) {
	for _, path := range []domain.Path{nil, domain.NewPath(asset.CRV)} {
		q := &fakeQuoter{}
		svc := NewPricingService(q, asset.DefaultRegistry())

		_, err := svc.Quote(context.Background(), big.NewInt(1), path)
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPath))
		assert.Zero(t, q.calls)
	}
}

func TestPricingService_ZeroInputSkipsRouter(t *testing.T) {
	q := &fakeQuoter{}
	svc := NewPricingService(q, asset.DefaultRegistry())

	quote, err := svc.Quote(context.Background(), big.NewInt(0), domain.NewPath(asset.CRV, asset.WETH))
	require.NoError(t, err)
	assert.Zero(t, q.calls)
	assert.Equal(t, 0, quote.Out().Sign())
}

func TestPricingService_Errors(t *testing.T) {
	path := domain.NewPath(asset.CRV, asset.WETH)

	tests := []struct {
		name     string
		quoter   *fakeQuoter
		amountIn *big.Int
		want     apperror.Code
	}{
		{
			name:     "router failure",
			quoter:   &fakeQuoter{err: errors.New("execution reverted")},
			amountIn: big.NewInt(10),
			want:     apperror.CodeDataUnavailable,
		},
		{
			name:     "length mismatch",
			quoter:   &fakeQuoter{amounts: []*big.Int{big.NewInt(10)}},
			amountIn: big.NewInt(10),
			want:     apperror.CodeInvalidQuote,
		},
		{
			name:     "negative input",
			quoter:   &fakeQuoter{},
			amountIn: big.NewInt(-1),
			want:     apperror.CodeInvalidQuote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewPricingService(tt.quoter, asset.DefaultRegistry())
			_, err := svc.Quote(context.Background(), tt.amountIn, path)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.want), "got %v", err)
		})
	}
}
