package config

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"go-simpler.org/env"
)

// MesConfig represents the configuration of this service
type MesConfig struct {
	// Add source info to log statements and lower the default log level. Default: false
	Debug bool `env:"MES_DEBUG" default:"false"`
	// Log level (DEBUG, INFO, WARN, ERROR)
	LogLevelStr string `env:"MES_LOG_LEVEL" default:"INFO"`
	LogLevel    slog.Level
	// Maximum size a single uploaded file may have
	MaxFileSize      string `env:"MES_MAX_FILE_SIZE" default:"100MiB"`
	MaxFileSizeBytes uint64
	// Maximum number of files accepted in one request
	MaxBatchItems int `env:"MES_MAX_BATCH_ITEMS" default:"50"`
	// Creator reported by /inspect when a document carries none
	DefaultCreator string `env:"MES_DEFAULT_CREATOR" default:"JasperReports Library version 6.20.5-3efcf2e67f959db3888d79f73dde2dbd7acb4f8e"`
	// Producer reported by /inspect when a document carries none
	DefaultProducer string `env:"MES_DEFAULT_PRODUCER" default:"OpenPDF 1.3.30"`
	// HTTP listen address and/or port. Default: ':8080'
	SrvAddr string `env:"MES_HOST_PORT" default:":8080"`
}

// NewMesConfigFromEnv returns a service config object
// populated with defaults and values from environment vars
func NewMesConfigFromEnv() (*MesConfig, error) {
	var cfg MesConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelStr)); err != nil {
		return nil, fmt.Errorf("parsing log level from env: %w", err)
	}
	maxSize, err := humanize.ParseBytes(cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max file size from env: %w", err)
	}
	cfg.MaxFileSizeBytes = maxSize
	return &cfg, nil
}
