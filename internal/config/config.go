// Package config loads carscout settings from defaults, an optional YAML
// file, CARSCOUT_* environment variables and command-line flags, in that
// order of increasing precedence, and validates the result.
package config

import (
	"time"

	"github.com/abdhe/carscout/pkg/resilience"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	LLM     LLMConfig     `mapstructure:"llm" validate:"required"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// ServerConfig contains the serving surfaces and logging settings.
type ServerConfig struct {
	GRPCPort       int           `mapstructure:"grpc_port" validate:"gt=0,lt=65536"`
	HTTPPort       int           `mapstructure:"http_port" validate:"gt=0,lt=65536"`
	LogLevel       string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat      string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// LLMConfig contains the generation endpoint and retry policy.
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	Model        string        `mapstructure:"model" validate:"required"`
	APIKeys      []string      `mapstructure:"api_keys"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
}

// RetryConfig returns the retry policy for the generation client.
func (c LLMConfig) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
	}
}

// CacheConfig configures the Redis answer cache. An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// Enabled reports whether a cache should be created.
func (c CacheConfig) Enabled() bool { return c.RedisAddr != "" }

// BreakerConfig configures the upstream circuit breaker. A zero
// FailureThreshold disables it.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"gte=0"`
}

// Enabled reports whether a breaker should be created.
func (c BreakerConfig) Enabled() bool { return c.FailureThreshold > 0 }
