package metrics

import "time"

// ReaderKind selects how instruments leave the process.
type ReaderKind string

const (
	// PullPrometheus registers with the default Prometheus registry, scraped from /metrics.
	PullPrometheus ReaderKind = "prometheus"
	// PushOTLP exports periodically to an OTLP gRPC collector.
	PushOTLP ReaderKind = "otlp"
)

// ReaderCfg configures one metric reader.
type ReaderCfg struct {
	Kind     ReaderKind
	Endpoint string
	Headers  map[string]string
	Interval time.Duration
}

// Config is the meter provider configuration.
type Config struct {
	ServiceName string
	Readers     []ReaderCfg
}

type OptionFn func(config Config) Config

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// WithPrometheus adds the pull reader.
func WithPrometheus() OptionFn {
	return func(config Config) Config {
		config.Readers = append(config.Readers, ReaderCfg{Kind: PullPrometheus})
		return config
	}
}

// WithOTLP adds a push reader. A zero interval uses the SDK default (60s).
func WithOTLP(endpoint string, headers map[string]string, interval time.Duration) OptionFn {
	return func(config Config) Config {
		config.Readers = append(config.Readers, ReaderCfg{
			Kind:     PushOTLP,
			Endpoint: endpoint,
			Headers:  headers,
			Interval: interval,
		})
		return config
	}
}
