package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Infra.Store)
	assert.Equal(t, 5*time.Minute, cfg.Order.ExpirationThreshold)
	assert.Equal(t, "@every 1m", cfg.Order.SweepSchedule)
	assert.False(t, cfg.Notification.Dedupe)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
infra:
  store: mysql
  kafka:
    brokers: [kafka-1:9092, kafka-2:9092]
    topic: orders
order:
  settlement_delay: 2s
  expiration_threshold: 10m
  sweep_lock: true
  sweep_lock_wait: 15s
seed:
  products:
    - {id: p-1, name: Widget, price: "9.99", stock: 3}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Infra.Store)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Infra.Kafka.Topic)
	assert.Equal(t, 2*time.Second, cfg.Order.SettlementDelay)
	assert.Equal(t, 10*time.Minute, cfg.Order.ExpirationThreshold)
	assert.True(t, cfg.Order.SweepLock)
	assert.Equal(t, 15*time.Second, cfg.Order.SweepLockWait)
	// 未出现在文件里的字段保留默认值
	assert.Equal(t, "order-processor", cfg.Order.ConsumerGroup)
	require.Len(t, cfg.Seed.Products, 1)
	assert.Equal(t, "9.99", cfg.Seed.Products[0].Price)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "infra:\n  kafka:\n    topic: from-file\n")
	t.Setenv("KAFKA_TOPIC", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Infra.Kafka.Topic)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Infra.Kafka.Brokers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"bad yaml":       "infra: [",
		"unknown store":  "infra:\n  store: postgres\n",
		"same groups":    "order:\n  consumer_group: g\nnotification:\n  consumer_group: g\n",
		"zero threshold": "order:\n  expiration_threshold: 0s\n",
		"negative wait":  "order:\n  sweep_lock_wait: -1s\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestOverlay_KeepsBaseUntouched(t *testing.T) {
	base := DefaultConfig()
	next, err := overlay(base, "app:\n  log_level: debug\n")
	require.NoError(t, err)
	assert.Equal(t, "debug", next.App.LogLevel)
	assert.Equal(t, "info", base.App.LogLevel)

	_, err = overlay(base, "infra:\n  store: nope\n")
	assert.Error(t, err)
}

func TestGetCurrentConfig_Swap(t *testing.T) {
	prev := GetCurrentConfig()
	t.Cleanup(func() { setCurrentConfig(prev) })

	cfg := DefaultConfig()
	cfg.App.Env = "test"
	setCurrentConfig(cfg)
	assert.Equal(t, "test", GetCurrentConfig().App.Env)
}
