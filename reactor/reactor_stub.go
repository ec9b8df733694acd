//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"net"

	"github.com/momentics/hioload-reactor/api"
)

// NewSelector returns an error for unsupported platforms.
func NewSelector() (Selector, error) {
	return nil, api.ErrNotSupported
}

// Listen returns an error for unsupported platforms.
func Listen(host string, port, backlog int) (int, *net.TCPAddr, error) {
	return -1, nil, api.ErrNotSupported
}

// Accept returns an error for unsupported platforms.
func Accept(lfd int) (int, *net.TCPAddr, error) { return -1, nil, api.ErrNotSupported }

// Read returns an error for unsupported platforms.
func Read(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

// Write returns an error for unsupported platforms.
func Write(fd int, p []byte) (int, error) { return 0, api.ErrNotSupported }

// CloseFd returns an error for unsupported platforms.
func CloseFd(fd int) error { return api.ErrNotSupported }

// SetSendBuffer returns an error for unsupported platforms.
func SetSendBuffer(fd, size int) error { return api.ErrNotSupported }

// WouldBlock always reports false on unsupported platforms.
func WouldBlock(err error) bool { return false }

// ThreadID returns -1 on unsupported platforms.
func ThreadID() int { return -1 }
