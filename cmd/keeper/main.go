// Package main is the entry point for the harvest keeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/fd1az/harvest-keeper/business/blockchain"
	blockchainDI "github.com/fd1az/harvest-keeper/business/blockchain/di"
	blockchainDomain "github.com/fd1az/harvest-keeper/business/blockchain/domain"
	"github.com/fd1az/harvest-keeper/business/harvest"
	harvestApp "github.com/fd1az/harvest-keeper/business/harvest/app"
	"github.com/fd1az/harvest-keeper/business/pricing"
	"github.com/fd1az/harvest-keeper/internal/apm"
	"github.com/fd1az/harvest-keeper/internal/config"
	"github.com/fd1az/harvest-keeper/internal/health"
	"github.com/fd1az/harvest-keeper/internal/logger"
	"github.com/fd1az/harvest-keeper/internal/metrics"
	"github.com/fd1az/harvest-keeper/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// keeperStallSlack is how long past the post-cycle delay a silent keeper is still considered alive.
const keeperStallSlack = 10 * time.Minute

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("harvest-keeper %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithFormat(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, cfg.App.LogFormat, nil)
	log.Info(ctx, "starting harvest keeper",
		"version", version,
		"environment", cfg.App.Environment,
	)

	shutdownTelemetry, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	harvestModule := &harvest.Module{}
	modules := []monolith.Module{
		&blockchain.Module{}, // blocks, gas sampling, estimation, signing
		&pricing.Module{},    // router quotes
		harvestModule,        // depends on blockchain and pricing
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	defer func() {
		if err := harvestModule.Close(mono.Services()); err != nil {
			log.Warn(ctx, "failed to close ledger", "error", err)
		}
	}()

	keeper := harvestModule.Keeper()
	chain := blockchainDI.GetBlockchainService(mono.Services())

	if cfg.Health.Port > 0 {
		hs := health.NewServer(cfg.Health.Port, version, log)
		hs.RegisterCheck("chain", func(context.Context) (bool, string) {
			return chainCheck(chain.ConnectionStatus())
		})
		hs.RegisterCheck("keeper", func(context.Context) (bool, string) {
			return keeperCheck(keeper, time.Now())
		})
		hs.Start()
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Stop(stopCtx)
		}()
	}

	err = keeper.Run(ctx)
	if harvestApp.IsNothingToKeep(err) {
		log.Info(ctx, "nothing to keep")
		return nil
	}
	if err != nil {
		return fmt.Errorf("keeper stopped: %w", err)
	}

	log.Info(ctx, "shutdown complete")
	return nil
}

// setupTelemetry installs the trace and meter providers when telemetry is
// enabled and returns their shutdown.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	traceProvider, err := apm.NewTraceProvider(ctx, apm.TraceConfig{
		Provider:    apm.ParseProvider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.TraceProvider)

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
	}
	// the collector that receives traces also receives metrics
	if apm.ParseProvider(cfg.Telemetry.TraceProvider) == apm.OTLPGRPCProvider && cfg.Telemetry.OTLPEndpoint != "" {
		metricOpts = append(metricOpts, metrics.WithOTLP(
			cfg.Telemetry.OTLPEndpoint,
			apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
			cfg.Telemetry.MetricInterval,
		))
	}
	meterProvider, err := metrics.NewMetricProvider(ctx, metricOpts...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	var promServer *metrics.PrometheusServer
	if cfg.Telemetry.PrometheusPort > 0 {
		promServer = metrics.NewPrometheusServer(cfg.Telemetry.PrometheusPort)
		promServer.Start(func(err error) {
			log.Error(context.Background(), "prometheus server stopped", "error", err)
		})
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if promServer != nil {
			_ = promServer.Stop(stopCtx)
		}
		_ = meterProvider.Shutdown(stopCtx)
		_ = traceProvider.Stop()
	}, nil
}

func chainCheck(s blockchainDomain.ConnectionStatus) (bool, string) {
	if s.State != blockchainDomain.StateConnected {
		return false, string(s.State)
	}
	msg := fmt.Sprintf("block %d", s.LastBlock)
	if !s.LastSeen.IsZero() {
		msg += ", " + humanize.Time(s.LastSeen)
	}
	if s.UsingHTTP {
		msg += " (polling)"
	}
	return true, msg
}

func keeperCheck(k *harvestApp.Keeper, now time.Time) (bool, string) {
	last := k.LastCycle()
	if last.IsZero() {
		return true, "waiting for first block"
	}
	if now.Sub(last) > k.PostCycleDelay()+keeperStallSlack {
		return false, "stalled since " + humanize.RelTime(last, now, "ago", "from now")
	}
	return true, "last cycle " + humanize.RelTime(last, now, "ago", "from now")
}
