package config

import "time"

// Supported queue drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
}

// QueueConfig contains the storage engine and worker policy settings.
type QueueConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=file postgres"`

	// BasePath is the root the default live and deadletter paths are
	// derived from.
	BasePath       string `mapstructure:"base_path" validate:"required"`
	Path           string `mapstructure:"path"`
	DeadletterPath string `mapstructure:"deadletter_path"`

	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`

	// ClaimTimeout enables stale-claim reclamation when positive.
	ClaimTimeout time.Duration `mapstructure:"claim_timeout" validate:"gte=0"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the relational driver settings. URL is required
// when the postgres driver is selected.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}
