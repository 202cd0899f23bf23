// Package curve implements the strategy handle for Curve voter-proxy strategies.
package curve

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/circuitbreaker"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// binding packs, calls and unpacks read-only contract methods.
type binding struct {
	caller   ethereum.ContractCaller
	strategy abi.ABI
	gauge    abi.ABI
	pool     abi.ABI
	cb       *circuitbreaker.CircuitBreaker[[]byte]
}

func newBinding(caller ethereum.ContractCaller, log logger.LoggerInterface) (*binding, error) {
	b := &binding{caller: caller}

	for _, def := range []struct {
		dst  *abi.ABI
		json string
		name string
	}{
		{&b.strategy, StrategyABI, "strategy"},
		{&b.gauge, GaugeABI, "gauge"},
		{&b.pool, PoolABI, "pool"},
	} {
		parsed, err := abi.JSON(strings.NewReader(def.json))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s ABI: %w", def.name, err)
		}
		*def.dst = parsed
	}

	cbCfg := circuitbreaker.DefaultConfig("curve-contracts")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	b.cb = circuitbreaker.New[[]byte](cbCfg)

	return b, nil
}

func (b *binding) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	result, err := b.cb.Execute(func() ([]byte, error) {
		return b.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, to.Hex())))
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode "+method))
	}
	if len(out) != 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("%s returned %d values", method, len(out))))
	}
	return out, nil
}

func (b *binding) readAddress(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (common.Address, error) {
	out, err := b.call(ctx, contract, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, unexpected(method, out[0])
	}
	return v, nil
}

func (b *binding) readUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	out, err := b.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, unexpected(method, out[0])
	}
	return v, nil
}

func (b *binding) readString(ctx context.Context, contract abi.ABI, to common.Address, method string) (string, error) {
	out, err := b.call(ctx, contract, to, method)
	if err != nil {
		return "", err
	}
	v, ok := out[0].(string)
	if !ok {
		return "", unexpected(method, out[0])
	}
	return v, nil
}

func unexpected(method string, v any) error {
	return apperror.New(apperror.CodeContractCallFailed,
		apperror.WithContext(fmt.Sprintf("%s returned %T", method, v)))
}
