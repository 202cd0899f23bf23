package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/fd1az/harvest-keeper/business/pricing/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/asset"
)

// PricingService quotes exact-input swaps along token paths.
type PricingService struct {
	quoter   PathQuoter
	registry *asset.Registry
	now      func() time.Time
}

// NewPricingService creates a PricingService over quoter.
func NewPricingService(quoter PathQuoter, registry *asset.Registry) *PricingService {
	return &PricingService{
		quoter:   quoter,
		registry: registry,
		now:      time.Now,
	}
}

// Quote returns the output of swapping amountIn along path. A zero input
// quotes zero without calling the router.
func (s *PricingService) Quote(ctx context.Context, amountIn *big.Int, path domain.Path) (*domain.Quote, error) {
	if len(path) < 2 {
		return nil, apperror.New(apperror.CodeInvalidPath,
			apperror.WithContext(fmt.Sprintf("path needs at least two tokens, got %d", len(path))))
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("amount in must be non-negative"))
	}

	in := s.registry.TokenOrUnknown(asset.ChainIDEthereum, path.In())
	out := s.registry.TokenOrUnknown(asset.ChainIDEthereum, path.Out())

	if amountIn.Sign() == 0 {
		amounts := make([]*big.Int, len(path))
		for i := range amounts {
			amounts[i] = new(big.Int)
		}
		return &domain.Quote{
			Path:      path,
			AmountIn:  asset.NewAmount(in, nil),
			AmountOut: asset.NewAmount(out, nil),
			Amounts:   amounts,
			Timestamp: s.now(),
		}, nil
	}

	amounts, err := s.quoter.AmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, apperror.New(apperror.CodeDataUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("quote "+path.String(s.registry)))
	}
	if len(amounts) != len(path) {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext(fmt.Sprintf("router returned %d amounts for %d tokens", len(amounts), len(path))))
	}
	last := amounts[len(amounts)-1]
	if last == nil || last.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("router returned a negative amount"))
	}

	return &domain.Quote{
		Path:      path,
		AmountIn:  asset.NewAmount(in, amountIn),
		AmountOut: asset.NewAmount(out, last),
		Amounts:   amounts,
		Timestamp: s.now(),
	}, nil
}

// AmountOut returns only the raw output amount of Quote.
func (s *PricingService) AmountOut(ctx context.Context, amountIn *big.Int, path domain.Path) (*big.Int, error) {
	q, err := s.Quote(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}
	return q.Out(), nil
}
