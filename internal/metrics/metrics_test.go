package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsCompose(t *testing.T) {
	var cfg Config
	for _, opt := range []OptionFn{
		WithServiceName("harvest-keeper"),
		WithPrometheus(),
		WithOTLP("http://collector:4317", map[string]string{"x-token": "t"}, 15*time.Second),
	} {
		cfg = opt(cfg)
	}

	assert.Equal(t, "harvest-keeper", cfg.ServiceName)
	require.Len(t, cfg.Readers, 2)
	assert.Equal(t, PullPrometheus, cfg.Readers[0].Kind)
	assert.Equal(t, PushOTLP, cfg.Readers[1].Kind)
	assert.Equal(t, 15*time.Second, cfg.Readers[1].Interval)
	assert.Equal(t, "t", cfg.Readers[1].Headers["x-token"])
}

func TestReaders_UnknownKind(t *testing.T) {
	_, err := readers(context.Background(), Config{Readers: []ReaderCfg{{Kind: "statsd"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd")
}

func TestNewMetricProvider_Prometheus(t *testing.T) {
	mp, err := NewMetricProvider(context.Background(), WithServiceName("test"), WithPrometheus())
	require.NoError(t, err)

	counter, err := mp.Meter("test").Int64Counter("keeper_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, mp.Shutdown(context.Background()))
}
