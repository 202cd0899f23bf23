package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/circuitbreaker"
	"github.com/fd1az/harvest-keeper/internal/httpclient"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

const pendingGasPricesQuery = "{ pending { transactions { gasPrice } } }"

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data struct {
		Pending struct {
			Transactions []struct {
				GasPrice string `json:"gasPrice"`
			} `json:"transactions"`
		} `json:"pending"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQLPendingPool reads pending gas prices from a geth GraphQL endpoint.
type GraphQLPendingPool struct {
	client   httpclient.Client
	endpoint string
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]*big.Int]
	tracer   trace.Tracer
}

// NewGraphQLPendingPool creates a pool reader posting to endpoint.
func NewGraphQLPendingPool(client httpclient.Client, endpoint string, log logger.LoggerInterface) *GraphQLPendingPool {
	p := &GraphQLPendingPool{
		client:   client,
		endpoint: endpoint,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	cfg := circuitbreaker.DefaultConfig("gas-pending-graphql")
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		p.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	p.cb = circuitbreaker.New[[]*big.Int](cfg)
	return p
}

// PendingGasPrices returns the gas price of every pending transaction.
func (p *GraphQLPendingPool) PendingGasPrices(ctx context.Context) ([]*big.Int, error) {
	ctx, span := p.tracer.Start(ctx, "gas.pending.graphql",
		trace.WithAttributes(attribute.String("endpoint", p.endpoint)))
	defer span.End()

	prices, err := p.cb.Execute(func() ([]*big.Int, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pending query failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("pending_count", len(prices)))
	span.SetStatus(codes.Ok, "fetched")
	return prices, nil
}

func (p *GraphQLPendingPool) fetch(ctx context.Context) ([]*big.Int, error) {
	var out graphQLResponse

	_, err := p.client.NewRequest(
		httpclient.WithLabel("operation", "pending_gas_prices"),
		httpclient.WithResponseErrorHandler(func(status int, body []byte) error {
			if status >= 400 {
				return apperror.New(apperror.CodeEthereumRPCError,
					apperror.WithContext(fmt.Sprintf("graphql status %d: %s", status, truncate(body, 200))))
			}
			return nil
		}),
	).
		SetBody(graphQLRequest{Query: pendingGasPricesQuery}).
		SetResult(&out).
		Post(ctx, p.endpoint)
	if err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithContext("graphql: "+strings.Join(msgs, "; ")))
	}

	txs := out.Data.Pending.Transactions
	prices := make([]*big.Int, 0, len(txs))
	for _, tx := range txs {
		v, err := parseQuantity(tx.GasPrice)
		if err != nil {
			return nil, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithCause(err),
				apperror.WithContext("invalid pending gasPrice "+tx.GasPrice))
		}
		prices = append(prices, v)
	}
	return prices, nil
}

// RPCCaller is the subset of *rpc.Client used for raw JSON-RPC calls.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type txPoolTx struct {
	GasPrice *hexutil.Big `json:"gasPrice"`
}

type txPoolContent struct {
	Pending map[string]map[string]txPoolTx `json:"pending"`
}

// TxPoolPendingPool reads pending gas prices from txpool_content.
type TxPoolPendingPool struct {
	rpc    RPCCaller
	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]*big.Int]
	tracer trace.Tracer
}

// NewTxPoolPendingPool creates a pool reader over a JSON-RPC client.
func NewTxPoolPendingPool(rpc RPCCaller, log logger.LoggerInterface) *TxPoolPendingPool {
	return &TxPoolPendingPool{
		rpc:    rpc,
		logger: log,
		cb:     circuitbreaker.New[[]*big.Int](circuitbreaker.DefaultConfig("gas-pending-txpool")),
		tracer: otel.Tracer(tracerName),
	}
}

// PendingGasPrices returns the gas price of every pending transaction.
func (p *TxPoolPendingPool) PendingGasPrices(ctx context.Context) ([]*big.Int, error) {
	ctx, span := p.tracer.Start(ctx, "gas.pending.txpool")
	defer span.End()

	prices, err := p.cb.Execute(func() ([]*big.Int, error) {
		var content txPoolContent
		if err := p.rpc.CallContext(ctx, &content, "txpool_content"); err != nil {
			return nil, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithCause(err),
				apperror.WithContext("txpool_content"))
		}

		var out []*big.Int
		for _, byNonce := range content.Pending {
			for _, tx := range byNonce {
				if tx.GasPrice == nil {
					continue
				}
				out = append(out, tx.GasPrice.ToInt())
			}
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "txpool query failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("pending_count", len(prices)))
	span.SetStatus(codes.Ok, "fetched")
	return prices, nil
}

// parseQuantity accepts 0x-prefixed hex and falls back to decimal.
func parseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if v, err := hexutil.DecodeBig(s); err == nil {
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("not a quantity: %q", s)
	}
	return v, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

