package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  http_url: http://localhost:8545
keeper:
  private_key: "0x01"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(86400), cfg.Harvest.IntervalSeconds)
	assert.Equal(t, 24*time.Hour, cfg.Harvest.Interval())
	assert.Equal(t, "1000", cfg.Harvest.MinEarnings)
	assert.Equal(t, 600*time.Second, cfg.Harvest.PostCycleDelay)
	assert.Equal(t, 30*time.Second, cfg.Harvest.CallTimeout)
	assert.Equal(t, "keeper.toml", cfg.Harvest.StatePath)
	assert.Equal(t, 500, cfg.Gas.PositionRank)
	assert.Equal(t, "graphql", cfg.Gas.Source)
	assert.Equal(t, "http://localhost:8545/graphql", cfg.Ethereum.GraphQLEndpoint())
	assert.Equal(t, 30*time.Second, cfg.Telemetry.MetricInterval)

	require.Len(t, cfg.Harvest.Strategies, 1)
	assert.Equal(t, "curve-voter-proxy", cfg.Harvest.Strategies[0].Kind)

	minEarnings, err := cfg.Harvest.MinEarningsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), minEarnings.Int64())
}

func TestLoad_FileOverridesAndEnv(t *testing.T) {
	t.Setenv("KEEPER_PRIVATE_KEY", "0xabc")

	path := writeConfig(t, `
ethereum:
  http_url: http://node:8545/
gas:
  source: txpool
  position_rank: 10
harvest:
  interval_seconds: 3600
  min_earnings: "5"
  strategies:
    - address: "0x0000000000000000000000000000000000000001"
      kind: curve-voter-proxy
    - address: "0x0000000000000000000000000000000000000002"
      kind: curve-voter-proxy
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0xabc", cfg.Keeper.PrivateKey)
	assert.Equal(t, "txpool", cfg.Gas.Source)
	assert.Equal(t, 10, cfg.Gas.PositionRank)
	assert.Equal(t, time.Hour, cfg.Harvest.Interval())
	assert.Len(t, cfg.Harvest.Strategies, 2)
	assert.Equal(t, "http://node:8545/graphql", cfg.Ethereum.GraphQLEndpoint())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Ethereum: EthereumConfig{HTTPURL: "http://localhost:8545"},
			Gas:      GasConfig{Source: "graphql", PositionRank: 500},
			Uniswap:  UniswapConfig{RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"},
			Harvest: HarvestConfig{
				IntervalSeconds: 86400,
				MinEarnings:     "1000",
				StatePath:       "keeper.toml",
			},
			Keeper: KeeperConfig{PrivateKey: "0x01"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing http url", func(c *Config) { c.Ethereum.HTTPURL = "" }, "ethereum.http_url"},
		{"bad gas source", func(c *Config) { c.Gas.Source = "oracle" }, "gas.source"},
		{"bad router", func(c *Config) { c.Uniswap.RouterAddress = "nope" }, "router_address"},
		{"zero interval", func(c *Config) { c.Harvest.IntervalSeconds = 0 }, "interval_seconds"},
		{"negative interval", func(c *Config) { c.Harvest.IntervalSeconds = -1 }, "interval_seconds"},
		{"bad min earnings", func(c *Config) { c.Harvest.MinEarnings = "1e3" }, "min_earnings"},
		{"negative min earnings", func(c *Config) { c.Harvest.MinEarnings = "-1" }, "min_earnings"},
		{"bad strategy", func(c *Config) {
			c.Harvest.Strategies = []StrategyConfig{{Address: "0x12", Kind: "curve-voter-proxy"}}
		}, "strategies[0]"},
		{"missing key", func(c *Config) { c.Keeper.PrivateKey = "" }, "private_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
