package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Ratio is an exact fraction Num/Den in [0, 1]. The zero value is 0/1.
type Ratio struct {
	num *big.Int
	den *big.Int
}

// NewRatio validates and copies num/den.
func NewRatio(num, den *big.Int) (Ratio, error) {
	if num == nil || den == nil {
		return Ratio{}, fmt.Errorf("ratio: nil operand")
	}
	if den.Sign() <= 0 {
		return Ratio{}, fmt.Errorf("ratio: denominator must be positive, got %s", den)
	}
	if num.Sign() < 0 {
		return Ratio{}, fmt.Errorf("ratio: numerator must be non-negative, got %s", num)
	}
	if num.Cmp(den) > 0 {
		return Ratio{}, fmt.Errorf("ratio: %s/%s is greater than one", num, den)
	}
	return Ratio{num: new(big.Int).Set(num), den: new(big.Int).Set(den)}, nil
}

// MustRatio is NewRatio for constants.
func MustRatio(num, den int64) Ratio {
	r, err := NewRatio(big.NewInt(num), big.NewInt(den))
	if err != nil {
		panic(err)
	}
	return r
}

// Num returns a copy of the numerator.
func (r Ratio) Num() *big.Int {
	if r.den == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.num)
}

// Den returns a copy of the denominator.
func (r Ratio) Den() *big.Int {
	if r.den == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(r.den)
}

// Apply returns floor(x * Num / Den).
func (r Ratio) Apply(x *big.Int) *big.Int {
	if r.den == nil || x == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, r.num)
	return out.Quo(out, r.den)
}

// Complement returns (Den - Num) / Den.
func (r Ratio) Complement() Ratio {
	den := r.Den()
	return Ratio{num: new(big.Int).Sub(den, r.Num()), den: den}
}

// Decimal returns the ratio for display.
func (r Ratio) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(r.Num(), 0).DivRound(decimal.NewFromBigInt(r.Den(), 0), 18)
}

func (r Ratio) String() string {
	return r.Decimal().Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
