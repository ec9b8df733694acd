package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// WriteDefault renders the default configuration as YAML to path. An
// existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := Render(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Render returns cfg as YAML.
func Render(cfg *Config) ([]byte, error) {
	out := struct {
		Logging LoggingConfig `yaml:"logging"`
		Server  struct {
			ServerConfig    `yaml:",inline"`
			ShutdownTimeout string `yaml:"shutdown_timeout"`
		} `yaml:"server"`
		Metrics MetricsConfig `yaml:"metrics"`
	}{Logging: cfg.Logging, Metrics: cfg.Metrics}
	out.Server.ServerConfig = cfg.Server
	out.Server.ShutdownTimeout = cfg.Server.ShutdownTimeout.String()

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return data, nil
}

func portOf(hostport string) int {
	_, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return -1
	}
	return n
}
