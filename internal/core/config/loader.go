package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/imagine/internal/infra/retry"
	"github.com/vietddude/imagine/internal/jobs"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Service.Timeout == 0 {
		cfg.Service.Timeout = 30 * time.Second
	}
	if cfg.Jobs.Model == "" {
		cfg.Jobs.Model = "midjourney"
	}
	if cfg.Jobs.PlaceholderBaseURL == "" {
		cfg.Jobs.PlaceholderBaseURL = jobs.DefaultPlaceholderBaseURL
	}
	if cfg.Jobs.Poll.MaxAttempts == 0 {
		cfg.Jobs.Poll.MaxAttempts = jobs.DefaultPollConfig.MaxAttempts
	}
	if cfg.Jobs.Poll.Interval == 0 {
		cfg.Jobs.Poll.Interval = jobs.DefaultPollConfig.Interval
	}
	cfg.Jobs.Retry = withRetryDefaults(cfg.Jobs.Retry, retry.NetworkConfig)
	cfg.Database.Retry = withRetryDefaults(cfg.Database.Retry, retry.PersistenceConfig)
}

// withRetryDefaults fills unset fields. MaxRetries may legitimately be 0,
// so it only defaults when the whole block is absent.
func withRetryDefaults(c, def retry.Config) retry.Config {
	if c == (retry.Config{}) {
		return def
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffMultiple == 0 {
		c.BackoffMultiple = def.BackoffMultiple
	}
	return c
}

// Validate checks settings that have no usable default.
func (c *AppConfig) Validate() error {
	if c.Service.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	if c.Jobs.Retry.BackoffMultiple < 1 {
		return fmt.Errorf("jobs.retry.backoff_multiple must be >= 1, got %v", c.Jobs.Retry.BackoffMultiple)
	}
	if c.Database.Retry.BackoffMultiple < 1 {
		return fmt.Errorf("database.retry.backoff_multiple must be >= 1, got %v", c.Database.Retry.BackoffMultiple)
	}
	return nil
}
