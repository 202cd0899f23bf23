// Package domain contains the core domain types for the harvest context.
package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind selects the on-chain strategy family and therefore its handle.
type Kind int

const (
	KindUnknown Kind = iota
	KindCurveVoterProxy
)

var kindNames = map[Kind]string{
	KindCurveVoterProxy: "curve-voter-proxy",
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown strategy kind %q", s)
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// FeeParams are the strategy's fee settings, each over FEE_DENOMINATOR.
type FeeParams struct {
	KeepFraction     Ratio // share of the reward token retained by the strategy
	PerformanceFee   Ratio
	StrategistReward Ratio
}

// CurveParams addresses the contracts a Curve voter-proxy strategy depends on.
type CurveParams struct {
	VoterProxy   common.Address
	Gauge        common.Address
	Pool         common.Address
	Reward       common.Address // CRV
	Intermediate common.Address // WETH, also the native quote target
	Output       common.Address // DAI, deposited into the pool
	OutputIndex  int            // position of Output in the pool's coins
}

// RewardToWant is the swap route used to value the claimable reward.
func (p *CurveParams) RewardToWant() []common.Address {
	return []common.Address{p.Reward, p.Intermediate, p.Output}
}

// RewardToNative is the swap route used to value the strategist reward.
func (p *CurveParams) RewardToNative() []common.Address {
	return []common.Address{p.Reward, p.Intermediate}
}

// Strategy is a managed vault strategy. Immutable after loading.
type Strategy struct {
	Address    common.Address
	Name       string
	Kind       Kind
	Strategist common.Address
	Want       common.Address
	Fees       FeeParams

	Curve *CurveParams
}

// ID keys the strategy in the harvest state.
func (s *Strategy) ID() common.Address {
	return s.Address
}

func (s *Strategy) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address.Hex()
}

// ManagedBy reports whether keeper is the strategy's strategist, the only
// account the keeper harvests for.
func (s *Strategy) ManagedBy(keeper common.Address) bool {
	return s.Strategist == keeper
}

// RewardToken is the token the strategy accrues before harvesting.
func (s *Strategy) RewardToken() common.Address {
	if s.Curve != nil {
		return s.Curve.Reward
	}
	return common.Address{}
}
