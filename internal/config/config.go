// Package config loads and validates the pipeline configuration from the
// environment. Anything that can be rejected is rejected at startup; the
// loops never see an invalid value at runtime.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig       `envPrefix:"MD_"`
	Feed      FeedConfig      `envPrefix:"MD_FEED_"`
	Sequencer SequencerConfig `envPrefix:"MD_SEQ_"`
	Recovery  RecoveryConfig  `envPrefix:"MD_RECOVERY_"`
}

// AppConfig covers process-level concerns.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"marketfeed"`
	OpsAddr     string `env:"OPS_ADDR" envDefault:":9102"`
	LogRingSize int    `env:"LOG_RING_SIZE" envDefault:"8192"`
}

// FeedConfig covers the transport and the two pinned cores.
type FeedConfig struct {
	Group         string `env:"GROUP" envDefault:"233.54.12.1"`
	Port          uint16 `env:"PORT" envDefault:"15000"`
	Interface     string `env:"INTERFACE" envDefault:"0.0.0.0"`
	ProducerCPU   int    `env:"PRODUCER_CPU" envDefault:"0"`
	ConsumerCPU   int    `env:"CONSUMER_CPU" envDefault:"1"`
	QueueCapacity int    `env:"QUEUE_CAPACITY" envDefault:"65536"`
}

// SequencerConfig covers gap and duplicate handling.
type SequencerConfig struct {
	DupWindow             int    `env:"DUP_WINDOW" envDefault:"10000"`
	ReorderCap            int    `env:"REORDER_CAP" envDefault:"1000"`
	MaxGap                uint64 `env:"MAX_GAP" envDefault:"1000"`
	GapTimeoutNS          uint64 `env:"GAP_TIMEOUT_NS" envDefault:"1000000000"`
	MaxRetries            uint8  `env:"MAX_RETRIES" envDefault:"3"`
	MaintenanceIntervalNS uint64 `env:"MAINTENANCE_INTERVAL_NS" envDefault:"100000000"`
}

// RecoveryConfig covers the retransmission request bus.
type RecoveryConfig struct {
	NATSURL   string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	QueueSize int    `env:"QUEUE_SIZE" envDefault:"256"`
}

// Load reads a local .env if present, then the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Feed.QueueCapacity <= 0 || c.Feed.QueueCapacity&(c.Feed.QueueCapacity-1) != 0 {
		return fmt.Errorf("queue capacity must be a power of two, got %d", c.Feed.QueueCapacity)
	}
	if c.Feed.Port == 0 {
		return fmt.Errorf("feed port must be set")
	}
	if c.Sequencer.DupWindow <= 0 {
		return fmt.Errorf("duplicate window must be positive, got %d", c.Sequencer.DupWindow)
	}
	if c.Sequencer.ReorderCap <= 0 {
		return fmt.Errorf("reorder capacity must be positive, got %d", c.Sequencer.ReorderCap)
	}
	if c.Sequencer.MaxGap == 0 {
		return fmt.Errorf("max gap must be positive")
	}
	if c.Sequencer.MaintenanceIntervalNS == 0 {
		return fmt.Errorf("maintenance interval must be positive")
	}
	if c.Feed.ProducerCPU >= 0 && c.Feed.ProducerCPU == c.Feed.ConsumerCPU {
		return fmt.Errorf("producer and consumer must be on distinct cores, both set to %d", c.Feed.ProducerCPU)
	}
	return nil
}
