package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/business/blockchain/app"
	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

// TransactorConfig holds the signing and confirmation settings.
type TransactorConfig struct {
	PrivateKey     string // hex, with or without 0x
	ChainID        *big.Int
	SubmitTimeout  time.Duration // nonce, estimate and broadcast
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

type transactorMetrics struct {
	sent     metric.Int64Counter
	reverted metric.Int64Counter
	gasUsed  metric.Int64Histogram
}

// Transactor implements app.Transactor with legacy EIP-155 transactions.
type Transactor struct {
	node      Node
	estimator app.GasEstimator
	logger    logger.LoggerInterface

	key           *ecdsa.PrivateKey
	from          common.Address
	signer        types.Signer
	submitTimeout time.Duration
	timeout       time.Duration
	poll          time.Duration

	mu      sync.Mutex
	pending common.Hash // broadcast but not confirmed, zero when none

	tracer  trace.Tracer
	metrics *transactorMetrics
}

// NewTransactor loads the keeper key and prepares a signer for cfg.ChainID.
func NewTransactor(node Node, estimator app.GasEstimator, cfg TransactorConfig, log logger.LoggerInterface) (*Transactor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidKey,
			apperror.WithCause(err),
			apperror.WithContext("keeper private key"))
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationMissing,
			apperror.WithContext("ethereum.chain_id"))
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}

	t := &Transactor{
		node:          node,
		estimator:     estimator,
		logger:        log,
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		signer:        types.NewEIP155Signer(cfg.ChainID),
		submitTimeout: cfg.SubmitTimeout,
		timeout:       cfg.ReceiptTimeout,
		poll:          cfg.PollInterval,
		tracer:        otel.Tracer(tracerName),
	}

	if err := t.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return t, nil
}

func (t *Transactor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	t.metrics = &transactorMetrics{}

	if t.metrics.sent, err = meter.Int64Counter(
		"eth_transactions_sent_total",
		metric.WithDescription("Transactions broadcast by the keeper account"),
		metric.WithUnit("{tx}"),
	); err != nil {
		return err
	}

	if t.metrics.reverted, err = meter.Int64Counter(
		"eth_transactions_reverted_total",
		metric.WithDescription("Mined transactions with a failed status"),
		metric.WithUnit("{tx}"),
	); err != nil {
		return err
	}

	t.metrics.gasUsed, err = meter.Int64Histogram(
		"eth_transaction_gas_used",
		metric.WithDescription("Gas used by mined keeper transactions"),
		metric.WithUnit("{gas}"),
	)
	return err
}

// From returns the keeper account address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Send signs call, broadcasts it and blocks until it is mined or the
// receipt timeout expires. A reverted transaction is CodeTransactionFailed.
//
// A transaction whose receipt never arrived is remembered. Until it is
// mined, Send returns CodeTransactionPending without broadcasting.
func (t *Transactor) Send(ctx context.Context, call domain.Call) (*domain.Receipt, error) {
	ctx, span := t.tracer.Start(ctx, "eth.send_transaction",
		trace.WithAttributes(
			attribute.String("from", t.from.Hex()),
			attribute.String("to", call.To.Hex()),
		),
	)
	defer span.End()

	if call.GasPrice == nil || call.GasPrice.Sign() <= 0 {
		err := apperror.New(apperror.CodeTransactionFailed,
			apperror.WithContext("gas price is required"))
		span.RecordError(err)
		return nil, err
	}

	fail := func(err error, msg string) (*domain.Receipt, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		if apperror.HasCode(err, apperror.CodeTransactionFailed) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext(msg))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkPending(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "previous transaction pending")
		return nil, err
	}

	signed, nonce, err := t.submit(ctx, call)
	if err != nil {
		return fail(err, "failed to submit transaction")
	}
	gasLimit := signed.Gas()
	t.metrics.sent.Add(ctx, 1)

	span.SetAttributes(
		attribute.String("tx_hash", signed.Hash().Hex()),
		attribute.Int64("nonce", int64(nonce)),
		attribute.Int64("gas_limit", int64(gasLimit)),
	)
	t.logger.Info(ctx, "transaction sent",
		"tx_hash", signed.Hash().Hex(),
		"to", call.To.Hex(),
		"nonce", nonce,
		"gas_limit", gasLimit,
		"gas_price", call.GasPrice.String(),
	)

	receipt, err := t.waitForReceipt(ctx, signed.Hash())
	if err != nil {
		t.pending = signed.Hash()
		return fail(err, "failed waiting for receipt")
	}

	t.metrics.gasUsed.Record(ctx, int64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		t.metrics.reverted.Add(ctx, 1)
		return fail(apperror.New(apperror.CodeTransactionFailed,
			apperror.WithContext(fmt.Sprintf("transaction %s reverted in block %s",
				signed.Hash().Hex(), receipt.BlockNumber))), "transaction reverted")
	}

	span.SetStatus(codes.Ok, "mined")
	return &domain.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Logs:        receipt.Logs,
	}, nil
}

// submit builds, signs and broadcasts call under the submit deadline.
func (t *Transactor) submit(ctx context.Context, call domain.Call) (*types.Transaction, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.submitTimeout)
	defer cancel()

	nonce, err := t.node.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, 0, fmt.Errorf("get nonce: %w", err)
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		if gasLimit, err = t.estimator.EstimateGas(ctx, t.from, call.To, call.Data); err != nil {
			return nil, 0, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := types.NewTransaction(nonce, call.To, big.NewInt(0), gasLimit, call.GasPrice, call.Data)
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return nil, 0, fmt.Errorf("sign transaction: %w", err)
	}

	if err := t.node.SendTransaction(ctx, signed); err != nil {
		return nil, 0, fmt.Errorf("send transaction: %w", err)
	}
	return signed, nonce, nil
}

// checkPending clears the remembered transaction once it has a receipt.
func (t *Transactor) checkPending(ctx context.Context) error {
	if t.pending == (common.Hash{}) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.submitTimeout)
	defer cancel()

	receipt, err := t.node.TransactionReceipt(ctx, t.pending)
	if err == nil && receipt != nil {
		t.logger.Info(ctx, "pending transaction mined",
			"tx_hash", t.pending.Hex(),
			"status", receipt.Status)
		t.pending = common.Hash{}
		return nil
	}

	opts := []apperror.Option{apperror.WithContext(t.pending.Hex())}
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		opts = append(opts, apperror.WithCause(err))
	}
	return apperror.New(apperror.CodeTransactionPending, opts...)
}

func (t *Transactor) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		receipt, err := t.node.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.BlockNumber == nil {
				receipt.BlockNumber = new(big.Int)
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.logger.Debug(ctx, "receipt lookup failed", "tx_hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
