// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"runtime"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/pool"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Host           string // bind host, empty for all IPv4 interfaces
	Port           int    // bind port, 0 picks a free port
	Workers        int    // scheduler workers, 0 = runtime.NumCPU()
	BlockingSync   bool   // lock-based actor scheduler instead of the lock-free one
	ReadBufferSize int    // capacity of each pooled read buffer
	SendBufferSize int    // SO_SNDBUF for accepted sockets, 0 keeps the OS default
	MaxEvents      int    // readiness events fetched per selector wait
	Backlog        int    // listen backlog, 0 = SOMAXCONN
	SelectorCPU    int    // CPU the selector thread is pinned to, -1 = no pinning
	AcceptRate     int    // accepted connections per second, 0 = unlimited
	AcceptBurst    int    // connections admitted at once above AcceptRate, 0 = AcceptRate
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "",
		Port:           7777,
		Workers:        runtime.NumCPU(),
		BlockingSync:   false,
		ReadBufferSize: pool.DefaultBufferSize,
		SendBufferSize: 0,
		MaxEvents:      128,
		Backlog:        1024,
		SelectorCPU:    -1,
	}
}

// normalize fills zero values and rejects negative ones.
func (c *Config) normalize() error {
	check := func(field string, v int) error {
		if v < 0 {
			return api.InvalidArgument("negative " + field).WithContext(field, v)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"port", c.Port},
		{"workers", c.Workers},
		{"read_buffer_size", c.ReadBufferSize},
		{"send_buffer_size", c.SendBufferSize},
		{"max_events", c.MaxEvents},
		{"backlog", c.Backlog},
		{"accept_rate", c.AcceptRate},
		{"accept_burst", c.AcceptBurst},
	} {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	if c.SelectorCPU < -1 {
		return api.InvalidArgument("invalid selector_cpu").WithContext("selector_cpu", c.SelectorCPU)
	}
	if c.Port > 65535 {
		return api.InvalidArgument("port out of range").WithContext("port", c.Port)
	}

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = pool.DefaultBufferSize
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = 128
	}
	if c.AcceptRate > 0 && c.AcceptBurst == 0 {
		c.AcceptBurst = c.AcceptRate
	}
	return nil
}
