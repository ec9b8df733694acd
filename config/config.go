// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package config loads the reactord configuration from a YAML file,
// REACTOR_* environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/momentics/hioload-reactor/server"
)

// EnvPrefix prefixes environment overrides, e.g. REACTOR_SERVER_PORT.
const EnvPrefix = "REACTOR"

// Config is the complete reactord configuration.
//
// Precedence, highest first: CLI flags, environment, config file, defaults.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level: debug, info, warn, error (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn warning error"`

	// Format: text or json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output: stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig mirrors server.Config plus process-level settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Workers         int           `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
	BlockingSync    bool          `mapstructure:"blocking_sync" yaml:"blocking_sync"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=0"`
	SendBufferSize  int           `mapstructure:"send_buffer_size" yaml:"send_buffer_size" validate:"gte=0"`
	MaxEvents       int           `mapstructure:"max_events" yaml:"max_events" validate:"gte=0"`
	Backlog         int           `mapstructure:"backlog" yaml:"backlog" validate:"gte=0"`
	SelectorCPU     int           `mapstructure:"selector_cpu" yaml:"selector_cpu" validate:"gte=-1"`
	AcceptRate      int           `mapstructure:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst     int           `mapstructure:"accept_burst" yaml:"accept_burst" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"-" validate:"gt=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// Load reads configuration from configPath (optional), the environment
// and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s: %w", configPath, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper registers every key with its default so that environment
// variables can override keys absent from the file.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.blocking_sync", d.Server.BlockingSync)
	v.SetDefault("server.read_buffer_size", d.Server.ReadBufferSize)
	v.SetDefault("server.send_buffer_size", d.Server.SendBufferSize)
	v.SetDefault("server.max_events", d.Server.MaxEvents)
	v.SetDefault("server.backlog", d.Server.Backlog)
	v.SetDefault("server.selector_cpu", d.Server.SelectorCPU)
	v.SetDefault("server.accept_rate", d.Server.AcceptRate)
	v.SetDefault("server.accept_burst", d.Server.AcceptBurst)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// ToServerConfig converts the server section for server.NewServer.
func (c *Config) ToServerConfig() *server.Config {
	return &server.Config{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		Workers:        c.Server.Workers,
		BlockingSync:   c.Server.BlockingSync,
		ReadBufferSize: c.Server.ReadBufferSize,
		SendBufferSize: c.Server.SendBufferSize,
		MaxEvents:      c.Server.MaxEvents,
		Backlog:        c.Server.Backlog,
		SelectorCPU:    c.Server.SelectorCPU,
		AcceptRate:     c.Server.AcceptRate,
		AcceptBurst:    c.Server.AcceptBurst,
	}
}
