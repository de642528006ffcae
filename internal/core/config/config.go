package config

import (
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/storage/postgres"
	"github.com/vietddude/imagine/internal/jobs"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Service  imagine.Config  `yaml:"service"`
	Jobs     jobs.Config     `yaml:"jobs"`
	Database postgres.Config `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
