package core

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryConfig struct {
	TimeoutSeconds       int `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxAttempts          int `koanf:"max_attempts" mapstructure:"max_attempts"`
	RetryIntervalSeconds int `koanf:"retry_interval_seconds" mapstructure:"retry_interval_seconds"`
}

func (c DeliveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c DeliveryConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSeconds) * time.Second
}

type Config struct {
	ServiceName       string         `koanf:"service_name" mapstructure:"service_name"`
	RecordLockTTLSecs int            `koanf:"record_lock_ttl_seconds" mapstructure:"record_lock_ttl_seconds"`
	Delivery          DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
}

func (c Config) RecordLockTTL() time.Duration {
	return time.Duration(c.RecordLockTTLSecs) * time.Second
}

func DefaultConfig() Config {
	return Config{
		ServiceName:       "verification",
		RecordLockTTLSecs: 30,
		Delivery: DeliveryConfig{
			TimeoutSeconds:       30,
			MaxAttempts:          3,
			RetryIntervalSeconds: 60,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Delivery.TimeoutSeconds <= 0 {
		return fmt.Errorf("core: delivery.timeout_seconds must be positive")
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("core: delivery.max_attempts must be at least 1")
	}
	if c.Delivery.RetryIntervalSeconds < 0 {
		return fmt.Errorf("core: delivery.retry_interval_seconds must not be negative")
	}
	if c.RecordLockTTLSecs <= 0 {
		return fmt.Errorf("core: record_lock_ttl_seconds must be positive")
	}
	return nil
}
