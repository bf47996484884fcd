// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"orderflow/internal/pkg/database"
)

// Config 是所有服务共享的配置结构，每个服务只读取自己关心的部分
type Config struct {
	App          AppConfig          `yaml:"app"`
	Infra        InfraConfig        `yaml:"infra"`
	Order        OrderConfig        `yaml:"order"`
	Notification NotificationConfig `yaml:"notification"`
	Seed         SeedConfig         `yaml:"seed"`
}

type AppConfig struct {
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

type InfraConfig struct {
	// Store 为 memory 或 mysql
	Store     string               `yaml:"store"`
	MySQL     database.MySQLConfig `yaml:"mysql"`
	Kafka     KafkaConfig          `yaml:"kafka"`
	Redis     RedisConfig          `yaml:"redis"`
	Zookeeper ZookeeperConfig      `yaml:"zookeeper"`
	Jaeger    JaegerConfig         `yaml:"jaeger"`
	Nacos     NacosConfig          `yaml:"nacos"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	// DataID 非空时从配置中心拉取配置并监听变更
	DataID string `yaml:"data_id"`
}

type OrderConfig struct {
	Port                int           `yaml:"port"`
	ConsumerGroup       string        `yaml:"consumer_group"`
	ConsumerConcurrency int           `yaml:"consumer_concurrency"`
	MaxAttempts         int           `yaml:"max_attempts"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	SettlementDelay     time.Duration `yaml:"settlement_delay"`
	ExpirationThreshold time.Duration `yaml:"expiration_threshold"`
	SweepSchedule       string        `yaml:"sweep_schedule"`
	// SweepLock 为 true 时用 ZooKeeper 锁保证只有一个副本执行回收
	SweepLock bool `yaml:"sweep_lock"`
	// SweepLockWait 大于 0 时排队等待锁，超时则跳过本轮
	SweepLockWait time.Duration `yaml:"sweep_lock_wait"`
}

type NotificationConfig struct {
	Port                int           `yaml:"port"`
	ConsumerGroup       string        `yaml:"consumer_group"`
	ConsumerConcurrency int           `yaml:"consumer_concurrency"`
	MaxAttempts         int           `yaml:"max_attempts"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	Dedupe              bool          `yaml:"dedupe"`
	DedupeTTL           time.Duration `yaml:"dedupe_ttl"`
	EmailLatency        time.Duration `yaml:"email_latency"`
	// EmailWebhook 非空时通过 HTTP 邮件网关发送，否则只模拟发送
	EmailWebhook string `yaml:"email_webhook"`
	// Embedded 为 true 时通知分发器与订单服务在同一进程内运行，共享内存存储
	Embedded bool `yaml:"embedded"`
}

type SeedConfig struct {
	Users    []SeedUser    `yaml:"users"`
	Products []SeedProduct `yaml:"products"`
}

type SeedUser struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type SeedProduct struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

// DefaultConfig 返回本地开发可直接运行的默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Env: "dev", LogLevel: "info", LogPretty: true},
		Infra: InfraConfig{
			Store: "memory",
			MySQL: database.MySQLConfig{
				Addr: "localhost:3306", User: "root", Database: "orderflow",
				MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: time.Hour,
			},
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "order-events"},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			Port:                8081,
			ConsumerGroup:       "order-processor",
			ConsumerConcurrency: 4,
			MaxAttempts:         3,
			RetryBackoff:        500 * time.Millisecond,
			SettlementDelay:     5 * time.Second,
			ExpirationThreshold: 5 * time.Minute,
			SweepSchedule:       "@every 1m",
		},
		Notification: NotificationConfig{
			Port:                8083,
			ConsumerGroup:       "notification-dispatcher",
			ConsumerConcurrency: 2,
			MaxAttempts:         3,
			RetryBackoff:        500 * time.Millisecond,
			DedupeTTL:           24 * time.Hour,
			EmailLatency:        50 * time.Millisecond,
		},
	}
}

var currentConfig atomic.Pointer[Config]

func init() {
	currentConfig.Store(DefaultConfig())
}

// GetCurrentConfig 返回当前生效的配置。配置中心推送变更后会被原子替换。
func GetCurrentConfig() *Config {
	return currentConfig.Load()
}

func setCurrentConfig(c *Config) {
	currentConfig.Store(c)
}

// LoadConfig 在默认配置上依次叠加 YAML 文件和环境变量。path 为空或文件不存在时跳过文件。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay 把配置中心下发的 YAML 叠加到 base 的副本上
func overlay(base *Config, content string) (*Config, error) {
	next := *base
	if err := yaml.Unmarshal([]byte(content), &next); err != nil {
		return nil, errors.Wrap(err, "parse remote config")
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

func (c *Config) Validate() error {
	switch c.Infra.Store {
	case "memory", "mysql":
	default:
		return errors.Errorf("infra.store must be memory or mysql, got %q", c.Infra.Store)
	}
	if c.Infra.Kafka.Topic == "" {
		return errors.New("infra.kafka.topic is required")
	}
	if c.Order.ExpirationThreshold <= 0 {
		return errors.New("order.expiration_threshold must be positive")
	}
	if c.Order.SweepLockWait < 0 {
		return errors.New("order.sweep_lock_wait must not be negative")
	}
	if c.Order.ConsumerGroup == c.Notification.ConsumerGroup {
		return errors.New("order and notification consumer groups must differ")
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.Infra.Store = getEnv("STORE", c.Infra.Store)
	c.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", c.Infra.MySQL.Addr)
	c.Infra.MySQL.User = getEnv("MYSQL_USER", c.Infra.MySQL.User)
	c.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", c.Infra.MySQL.Password)
	c.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", c.Infra.MySQL.Database)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = splitList(v)
	}
	c.Infra.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Infra.Kafka.Topic)
	c.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", c.Infra.Redis.Addrs)
	if v := getEnv("ZOOKEEPER_SERVERS", ""); v != "" {
		c.Infra.Zookeeper.Servers = splitList(v)
	}
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Notification.EmailWebhook = getEnv("EMAIL_WEBHOOK", c.Notification.EmailWebhook)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	if getEnv("NACOS_ENABLED", "") == "true" {
		c.Infra.Nacos.Enabled = true
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
