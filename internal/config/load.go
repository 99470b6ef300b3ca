package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FILEQUEUE"

// DefaultConfigName is the file name (without extension) Load looks for in
// the working directory when no explicit file is given.
const DefaultConfigName = "filequeue"

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.driver", DriverFile)
	v.SetDefault("queue.base_path", ".")
	v.SetDefault("queue.path", "")
	v.SetDefault("queue.deadletter_path", "")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_delay", "5s")
	v.SetDefault("queue.poll_interval", "1s")
	v.SetDefault("queue.claim_timeout", "0s")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.url", "")
}

// Load configuration from defaults, a config file and environment variables.
// Environment variables take precedence over values from config files.
// With an empty configFile, filequeue.yaml in the working directory is used
// when present; an explicit file that cannot be read is an error.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("error binding environment variable %s_DATABASE_URL: %w", EnvPrefix, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths fills the live and deadletter paths left empty.
func (c *Config) resolvePaths() {
	if c.Queue.Path == "" {
		c.Queue.Path = filepath.Join(c.Queue.BasePath, "storage", "queue")
	}
	if c.Queue.DeadletterPath == "" {
		c.Queue.DeadletterPath = filepath.Join(c.Queue.Path, "deadletter")
	}
}

// Validate checks the configuration against its validate tags and the
// cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(validateDriverSettings, Config{})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateDriverSettings(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Queue.Driver == DriverPostgres && cfg.Database.URL == "" {
		sl.ReportError(cfg.Database.URL, "Database.URL", "URL", "required_with_postgres", "")
	}
}
