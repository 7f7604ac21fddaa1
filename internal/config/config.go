package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the condition worker
type Config struct {
	// Worker configuration
	WorkerID         string `env:"WORKER_ID" envDefault:"condition-1"`
	BatchConcurrency int    `env:"BATCH_CONCURRENCY" envDefault:"4"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"condition.work"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"condition-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"condition.decided"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`

	// Condition evaluation
	MaxDepth int `env:"MAX_DEPTH" envDefault:"64"`

	// Rule sets
	RulesPath     string        `env:"RULES_PATH"`
	RulesWatch    bool          `env:"RULES_WATCH" envDefault:"true"`
	RulesDebounce time.Duration `env:"RULES_DEBOUNCE" envDefault:"200ms"`

	// LLM configuration
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	LLMModel    string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Health check and metrics
	HealthPort     int  `env:"HEALTH_PORT" envDefault:"8082"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be non-negative")
	}

	if c.MaxDepth < 1 {
		return fmt.Errorf("MAX_DEPTH must be at least 1")
	}

	if c.RulesDebounce <= 0 {
		return fmt.Errorf("RULES_DEBOUNCE must be positive")
	}

	if c.LLMProvider == "" {
		return fmt.Errorf("LLM_PROVIDER is required")
	}

	// LLM_API_KEY is optional; without it llm mode fails and hybrid mode
	// falls back to the default route.

	if c.LLMModel == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// LLMEnabled reports whether an LLM client should be created.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"MaxDepth=%d, BatchConcurrency=%d, RulesPath=%s, RulesWatch=%v, "+
			"LLMProvider=%s, LLMModel=%s, LLMEnabled=%v, HealthPort=%d, MetricsEnabled=%v, LogLevel=%s}",
		c.WorkerID,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.MaxDepth,
		c.BatchConcurrency,
		c.RulesPath,
		c.RulesWatch,
		c.LLMProvider,
		c.LLMModel,
		c.LLMEnabled(),
		c.HealthPort,
		c.MetricsEnabled,
		c.LogLevel,
	)
}
