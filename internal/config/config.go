// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Gas       GasConfig       `mapstructure:"gas"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Keeper    KeeperConfig    `mapstructure:"keeper"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	GraphQLURL     string        `mapstructure:"graphql_url"` // defaults to <http_url>/graphql
	ChainID        uint64        `mapstructure:"chain_id"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// GraphQLEndpoint returns the geth GraphQL endpoint.
func (c *EthereumConfig) GraphQLEndpoint() string {
	if c.GraphQLURL != "" {
		return c.GraphQLURL
	}
	return strings.TrimRight(c.HTTPURL, "/") + "/graphql"
}

// GasConfig selects how pending gas prices are sampled.
type GasConfig struct {
	Source       string `mapstructure:"source"` // graphql | txpool
	PositionRank int    `mapstructure:"position_rank"`
}

// UniswapConfig holds the Uniswap V2 router used for path quotes.
type UniswapConfig struct {
	RouterAddress     string `mapstructure:"router_address"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// RouterAddressHex returns the router address as common.Address.
func (c *UniswapConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// StrategyConfig lists one strategy the keeper may manage.
type StrategyConfig struct {
	Address string `mapstructure:"address"`
	Kind    string `mapstructure:"kind"`
}

// HarvestConfig holds the trigger thresholds and loop timing.
type HarvestConfig struct {
	IntervalSeconds int64            `mapstructure:"interval_seconds"`
	MinEarnings     string           `mapstructure:"min_earnings"` // smallest output-token units
	PostCycleDelay  time.Duration    `mapstructure:"post_cycle_delay"`
	CallTimeout     time.Duration    `mapstructure:"call_timeout"`
	ReceiptTimeout  time.Duration    `mapstructure:"receipt_timeout"`
	StatePath       string           `mapstructure:"state_path"`
	Strategies      []StrategyConfig `mapstructure:"strategies"`
}

// Interval returns the time trigger threshold.
func (c *HarvestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// MinEarningsInt parses MinEarnings as an integer amount.
func (c *HarvestConfig) MinEarningsInt() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.MinEarnings), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid harvest.min_earnings: %q", c.MinEarnings)
	}
	return v, nil
}

// KeeperConfig holds the keeper account.
type KeeperConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// LedgerConfig holds the harvest attempt ledger location. An empty path disables it.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TraceProvider  string `mapstructure:"trace_provider"` // otlp-grpc | otlp-http | zipkin | console | none
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`

	MetricInterval time.Duration `mapstructure:"metric_interval"` // OTLP push period
}

// HealthConfig holds the health server settings. Port 0 disables it.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "KEEPER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "KEEPER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "KEEPER_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "KEEPER_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "KEEPER_ETH_HTTP_URL", "ETH_HTTP_URL", "ETH_RPC_URL")
	v.BindEnv("ethereum.graphql_url", "KEEPER_ETH_GRAPHQL_URL", "ETH_GRAPHQL_URL")
	v.BindEnv("ethereum.chain_id", "KEEPER_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Gas
	v.BindEnv("gas.source", "KEEPER_GAS_SOURCE")
	v.BindEnv("gas.position_rank", "KEEPER_GAS_POSITION_RANK")

	// Harvest
	v.BindEnv("harvest.interval_seconds", "KEEPER_HARVEST_INTERVAL_SECONDS")
	v.BindEnv("harvest.min_earnings", "KEEPER_HARVEST_MIN_EARNINGS")
	v.BindEnv("harvest.state_path", "KEEPER_STATE_PATH")

	// Keeper account
	v.BindEnv("keeper.private_key", "KEEPER_PRIVATE_KEY")

	// Ledger
	v.BindEnv("ledger.path", "KEEPER_LEDGER_PATH")

	// Telemetry
	v.BindEnv("telemetry.enabled", "KEEPER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.trace_provider", "KEEPER_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.service_name", "KEEPER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "KEEPER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "harvest-keeper")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.poll_interval", "12s")
	v.SetDefault("ethereum.reconnect_delay", "5s")

	// Gas defaults
	v.SetDefault("gas.source", "graphql")
	v.SetDefault("gas.position_rank", 500)

	// Uniswap V2 Mainnet router
	v.SetDefault("uniswap.router_address", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	v.SetDefault("uniswap.requests_per_minute", 600)

	// Harvest defaults
	v.SetDefault("harvest.interval_seconds", 86400)
	v.SetDefault("harvest.min_earnings", "1000")
	v.SetDefault("harvest.post_cycle_delay", "600s")
	v.SetDefault("harvest.call_timeout", "30s")
	v.SetDefault("harvest.receipt_timeout", "5m")
	v.SetDefault("harvest.state_path", "keeper.toml")
	v.SetDefault("harvest.strategies", []map[string]any{
		{"address": "0xC59601F0CC49baa266891b7fc63d2D5FE097A79D", "kind": "curve-voter-proxy"},
	})

	// Ledger defaults
	v.SetDefault("ledger.path", "keeper.db")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.trace_provider", "otlp-grpc")
	v.SetDefault("telemetry.service_name", "harvest-keeper")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.metric_interval", "30s")

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	switch c.Gas.Source {
	case "graphql", "txpool":
	default:
		return fmt.Errorf("invalid gas.source: %s (want graphql or txpool)", c.Gas.Source)
	}
	if !common.IsHexAddress(c.Uniswap.RouterAddress) {
		return fmt.Errorf("invalid uniswap.router_address: %s", c.Uniswap.RouterAddress)
	}
	if c.Harvest.IntervalSeconds <= 0 {
		return fmt.Errorf("harvest.interval_seconds must be positive")
	}
	if _, err := c.Harvest.MinEarningsInt(); err != nil {
		return err
	}
	if c.Harvest.StatePath == "" {
		return fmt.Errorf("harvest.state_path is required")
	}
	for i, s := range c.Harvest.Strategies {
		if !common.IsHexAddress(s.Address) {
			return fmt.Errorf("invalid harvest.strategies[%d].address: %s", i, s.Address)
		}
	}
	if c.Keeper.PrivateKey == "" {
		return fmt.Errorf("keeper.private_key is required (KEEPER_PRIVATE_KEY)")
	}
	return nil
}
