package config

import (
	"strings"
	"time"

	"github.com/momentics/hioload-reactor/server"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	sc := server.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			Host:            sc.Host,
			Port:            sc.Port,
			Workers:         0,
			BlockingSync:    sc.BlockingSync,
			ReadBufferSize:  sc.ReadBufferSize,
			SendBufferSize:  sc.SendBufferSize,
			MaxEvents:       sc.MaxEvents,
			Backlog:         sc.Backlog,
			SelectorCPU:     sc.SelectorCPU,
			AcceptRate:      sc.AcceptRate,
			AcceptBurst:     sc.AcceptBurst,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}

// ApplyDefaults fills zero values left by the file and environment and
// normalizes the log level to lowercase.
func ApplyDefaults(cfg *Config) {
	d := Default()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}

	if cfg.Server.ReadBufferSize == 0 {
		cfg.Server.ReadBufferSize = d.Server.ReadBufferSize
	}
	if cfg.Server.MaxEvents == 0 {
		cfg.Server.MaxEvents = d.Server.MaxEvents
	}
	if cfg.Server.Backlog == 0 {
		cfg.Server.Backlog = d.Server.Backlog
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = d.Metrics.Listen
	}
}
