// Package config loads the simulator configuration from YAML files and
// PINCEX_* environment variables, validates it and hot-reloads it.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "PINCEX"

// Config is the complete simulator configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Instrument InstrumentConfig `mapstructure:"instrument" yaml:"instrument"`
	OrderBook  OrderBookConfig  `mapstructure:"orderbook" yaml:"orderbook"`
	Latency    LatencyConfig    `mapstructure:"latency" yaml:"latency"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Bots       BotsConfig       `mapstructure:"bots" yaml:"bots"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Kafka      KafkaConfig      `mapstructure:"kafka" yaml:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

type InstrumentConfig struct {
	Symbol   string  `mapstructure:"symbol" yaml:"symbol" validate:"required"`
	TickSize float64 `mapstructure:"tick_size" yaml:"tick_size" validate:"gt=0"`
}

type OrderBookConfig struct {
	Index            string `mapstructure:"index" yaml:"index" validate:"oneof=btree rbtree"`
	Degree           int    `mapstructure:"degree" yaml:"degree" validate:"gte=0"`
	MaxSnapshotDepth int    `mapstructure:"max_snapshot_depth" yaml:"max_snapshot_depth" validate:"gte=1,lte=1000"`
	HistorySize      int    `mapstructure:"history_size" yaml:"history_size" validate:"gte=1"`
}

type LatencyConfig struct {
	Min  time.Duration `mapstructure:"min" yaml:"min" validate:"gte=0"`
	Max  time.Duration `mapstructure:"max" yaml:"max" validate:"gte=0"`
	Seed int64         `mapstructure:"seed" yaml:"seed"`
}

type SimulationConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
	Speed          float64       `mapstructure:"speed" yaml:"speed" validate:"gte=0"`
	MaxSteps       uint64        `mapstructure:"max_steps" yaml:"max_steps"`
	ReferencePrice float64       `mapstructure:"reference_price" yaml:"reference_price" validate:"gt=0"`
	Volatility     float64       `mapstructure:"volatility" yaml:"volatility" validate:"gte=0"`
	Seed           int64         `mapstructure:"seed" yaml:"seed"`
	SnapshotDepth  int           `mapstructure:"snapshot_depth" yaml:"snapshot_depth" validate:"gte=1,lte=1000"`
}

type BotsConfig struct {
	Capacity       int   `mapstructure:"capacity" yaml:"capacity" validate:"gte=1"`
	CancelOnRemove bool  `mapstructure:"cancel_on_remove" yaml:"cancel_on_remove"`
	Seed           int64 `mapstructure:"seed" yaml:"seed"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Address         string        `mapstructure:"address" yaml:"address" validate:"required_if=Enabled true"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	WSBuffer        int           `mapstructure:"ws_buffer" yaml:"ws_buffer" validate:"gte=1"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	Compression  string        `mapstructure:"compression" yaml:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Buffer       int           `mapstructure:"buffer" yaml:"buffer" validate:"gte=1"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Buffer   int           `mapstructure:"buffer" yaml:"buffer" validate:"gte=1"`
}

// TracingConfig turns on the OpenTelemetry stdout exporters.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Metrics     bool   `mapstructure:"metrics" yaml:"metrics"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("instrument.symbol", "SIM-USD")
	v.SetDefault("instrument.tick_size", 0.01)

	v.SetDefault("orderbook.index", "btree")
	v.SetDefault("orderbook.degree", 32)
	v.SetDefault("orderbook.max_snapshot_depth", 1000)
	v.SetDefault("orderbook.history_size", 1000)

	v.SetDefault("latency.min", "1ms")
	v.SetDefault("latency.max", "50ms")
	v.SetDefault("latency.seed", 1)

	v.SetDefault("simulation.tick_interval", "100ms")
	v.SetDefault("simulation.speed", 1.0)
	v.SetDefault("simulation.max_steps", 0)
	v.SetDefault("simulation.reference_price", 100.0)
	v.SetDefault("simulation.volatility", 1.0)
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.snapshot_depth", 20)

	v.SetDefault("bots.capacity", 100)
	v.SetDefault("bots.cancel_on_remove", false)
	v.SetDefault("bots.seed", 1)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.ws_buffer", 256)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "pincex.sim.events")
	v.SetDefault("kafka.compression", "snappy")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.buffer", 4096)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pincex:sim")
	v.SetDefault("redis.ttl", "30s")
	v.SetDefault("redis.buffer", 64)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.metrics", false)
	v.SetDefault("tracing.service_name", "pincex-sim")
}

// Validate checks tags and the cross-field rules tags cannot express.
func (c *Config) Validate(v *validator.Validate) error {
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.Latency.Min > c.Latency.Max {
		return fmt.Errorf("latency.min %s exceeds latency.max %s", c.Latency.Min, c.Latency.Max)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka is enabled but brokers or topic are not configured")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis is enabled but no address is configured")
	}
	return nil
}
