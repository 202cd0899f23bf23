// Package metrics sets up the OTEL meter provider and the Prometheus scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func readers(ctx context.Context, cfg Config) ([]sdkmetric.Reader, error) {
	out := make([]sdkmetric.Reader, 0, len(cfg.Readers))

	for _, r := range cfg.Readers {
		switch r.Kind {
		case PullPrometheus:
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}
			out = append(out, promExporter)
		case PushOTLP:
			exp, err := otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpointURL(r.Endpoint),
				otlpmetricgrpc.WithHeaders(r.Headers),
			)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}
			var opts []sdkmetric.PeriodicReaderOption
			if r.Interval > 0 {
				opts = append(opts, sdkmetric.WithInterval(r.Interval))
			}
			out = append(out, sdkmetric.NewPeriodicReader(exp, opts...))
		default:
			return nil, fmt.Errorf("unknown metric reader %q", r.Kind)
		}
	}

	return out, nil
}

// NewMetricProvider builds the meter provider and installs it globally.
func NewMetricProvider(ctx context.Context, options ...OptionFn) (MetricProvider, error) {
	var cfg Config
	for _, opt := range options {
		cfg = opt(cfg)
	}

	rs, err := readers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := make([]sdkmetric.Option, 0, len(rs)+1)
	for _, r := range rs {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	opts = append(opts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// PrometheusServer serves /metrics from the default Prometheus registry.
type PrometheusServer struct {
	server *http.Server
}

// NewPrometheusServer creates a /metrics server on port.
func NewPrometheusServer(port int) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &PrometheusServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background. Listen errors go to onErr.
func (s *PrometheusServer) Start(onErr func(error)) {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
}

// Stop shuts the server down.
func (s *PrometheusServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
