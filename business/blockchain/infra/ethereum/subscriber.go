// Package ethereum provides Ethereum node adapters for the blockchain context.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
	"github.com/fd1az/harvest-keeper/internal/circuitbreaker"
	"github.com/fd1az/harvest-keeper/internal/logger"
)

const (
	tracerName = "github.com/fd1az/harvest-keeper/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/harvest-keeper/business/blockchain/infra/ethereum"
)

// SubscriberConfig holds configuration for the block subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary)
	HTTPURL        string        // HTTP endpoint (fallback)
	PollInterval   time.Duration // polling interval for the HTTP fallback
	ReconnectDelay time.Duration // delay before redialing WS
	BufferSize     int           // block channel buffer
}

// DefaultSubscriberConfig returns defaults for mainnet block times.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   12 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     16,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	blocksDropped    metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	httpFallbackUsed metric.Int64Counter
}

// Subscriber implements app.BlockSubscriber with a WebSocket new-heads
// subscription and an HTTP polling fallback. When the consumer falls behind,
// the oldest buffered block is dropped so the freshest one is always kept.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	clientMu   sync.RWMutex
	wsClient   *ethclient.Client
	httpClient *ethclient.Client

	stateMu    sync.RWMutex
	state      domain.ConnectionState
	lastSeen   time.Time
	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32

	emitMu  sync.Mutex
	blocks  chan *domain.Block
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a block subscriber. Nothing is dialed until Subscribe.
func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("eth-http-poll")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	if s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total Ethereum blocks received"),
		metric.WithUnit("{block}"),
	); err != nil {
		return err
	}

	if s.metrics.blocksDropped, err = meter.Int64Counter(
		"eth_blocks_dropped_total",
		metric.WithDescription("Stale blocks evicted because the consumer fell behind"),
		metric.WithUnit("{block}"),
	); err != nil {
		return err
	}

	if s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total Ethereum subscription errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	); err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times the HTTP polling fallback was engaged"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe dials WS (falling back to HTTP polling) and returns the block channel.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(
			attribute.Bool("ws_configured", s.config.WSURL != ""),
		),
	)
	defer span.End()

	if s.closed.Load() {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}

	s.setState(domain.StateConnecting)

	if err := s.connectWS(ctx); err != nil {
		if s.config.WSURL != "" {
			s.logger.Warn(ctx, "ws connection failed, using http polling", "error", err)
			span.AddEvent("ws_failed_trying_http")
		}

		if err := s.connectHTTP(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "both connections failed")
			s.setState(domain.StateDisconnected)
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("failed to connect via WS and HTTP"))
		}

		s.usingHTTP.Store(true)
		go s.runHTTPPoller(ctx)
	} else {
		go s.runWSSubscription(ctx)
	}

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")

	return s.blocks, nil
}

func (s *Subscriber) dial(ctx context.Context, kind, url string) (*ethclient.Client, error) {
	ctx, span := s.tracer.Start(ctx, "eth.connect."+kind)
	defer span.End()

	if url == "" {
		return nil, fmt.Errorf("%s url not configured", kind)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("dial %s: %w", kind, err)
	}

	span.SetStatus(codes.Ok, "connected")
	return client, nil
}

func (s *Subscriber) connectWS(ctx context.Context) error {
	client, err := s.dial(ctx, "ws", s.config.WSURL)
	if err != nil {
		return err
	}
	s.clientMu.Lock()
	s.wsClient = client
	s.clientMu.Unlock()
	return nil
}

func (s *Subscriber) connectHTTP(ctx context.Context) error {
	s.clientMu.RLock()
	existing := s.httpClient
	s.clientMu.RUnlock()
	if existing != nil {
		return nil
	}

	client, err := s.dial(ctx, "http", s.config.HTTPURL)
	if err != nil {
		return err
	}
	s.clientMu.Lock()
	s.httpClient = client
	s.clientMu.Unlock()
	return nil
}

func (s *Subscriber) runWSSubscription(ctx context.Context) {
	s.clientMu.RLock()
	client := s.wsClient
	s.clientMu.RUnlock()

	if client == nil {
		s.handleWSDisconnect(ctx)
		return
	}

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.handleWSDisconnect(ctx)
		return
	}
	defer sub.Unsubscribe()

	s.logger.Info(ctx, "subscribed to new heads via ws")

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			s.handleWSDisconnect(ctx)
			return
		case header := <-headers:
			if header != nil {
				s.emit(ctx, header, false)
			}
		}
	}
}

// handleWSDisconnect waits ReconnectDelay, redials WS and otherwise falls back to HTTP polling.
func (s *Subscriber) handleWSDisconnect(ctx context.Context) {
	if s.closed.Load() {
		return
	}

	s.setState(domain.StateReconnecting)
	s.reconnects.Add(1)

	timer := time.NewTimer(s.config.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-s.done:
		return
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := s.connectWS(ctx); err == nil {
		s.usingHTTP.Store(false)
		s.setState(domain.StateConnected)
		go s.runWSSubscription(ctx)
		return
	} else {
		s.logger.Warn(ctx, "ws reconnect failed, switching to http", "error", err)
	}

	if err := s.connectHTTP(ctx); err != nil {
		s.logger.Error(ctx, "http fallback connection failed", "error", err)
		s.setState(domain.StateDisconnected)
		return
	}

	s.usingHTTP.Store(true)
	s.metrics.httpFallbackUsed.Add(ctx, 1)
	s.setState(domain.StateConnected)
	go s.runHTTPPoller(ctx)
}

func (s *Subscriber) runHTTPPoller(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "polling for new blocks over http", "interval", s.config.PollInterval)
	s.pollLatestBlock(ctx)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		}
	}
}

func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()

	if client == nil {
		span.AddEvent("no_http_client")
		return
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	if header.Number.Uint64() <= s.lastBlock.Load() {
		span.AddEvent("no_new_block")
		return
	}

	s.emit(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

// emit hands a block to the consumer, evicting the oldest buffered block if full.
func (s *Subscriber) emit(ctx context.Context, header *types.Header, fromHTTP bool) {
	block := headerToBlock(header)

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.closed.Load() {
		return
	}

	s.lastBlock.Store(block.Number)
	s.stateMu.Lock()
	s.lastSeen = time.Now()
	s.stateMu.Unlock()

	for {
		select {
		case s.blocks <- block:
			s.metrics.blocksReceived.Add(ctx, 1, metric.WithAttributes(attribute.Bool("from_http", fromHTTP)))
			s.logger.Debug(ctx, "block received", "number", block.Number, "from_http", fromHTTP)
			return
		default:
		}

		select {
		case stale := <-s.blocks:
			s.metrics.blocksDropped.Add(ctx, 1)
			s.logger.Debug(ctx, "dropped stale block", "number", stale.Number)
		default:
		}
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		BaseFee:    header.BaseFee,
	}
}

// LatestBlock fetches the head block over HTTP (or WS when no HTTP client exists).
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	if client == nil {
		client = s.wsClient
	}
	s.clientMu.RUnlock()

	if client == nil {
		err := apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("no ethereum client connected"))
		span.RecordError(err)
		return nil, err
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// Status returns a snapshot of the connection.
func (s *Subscriber) Status() domain.ConnectionStatus {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	return domain.ConnectionStatus{
		State:      s.state,
		LastBlock:  s.lastBlock.Load(),
		LastSeen:   s.lastSeen,
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

// Close stops the subscription goroutines and closes the block channel.
func (s *Subscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	s.logger.Info(context.Background(), "closing block subscriber")

	s.emitMu.Lock()
	s.closed.Store(true)
	close(s.done)
	close(s.blocks)
	s.emitMu.Unlock()

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	s.setState(domain.StateDisconnected)
	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	var v int64
	switch state {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateReconnecting:
		v = 3
	}
	s.metrics.connectionState.Record(context.Background(), v)
}
