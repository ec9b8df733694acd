// File: protocol/echo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"strings"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
)

var _ api.Protocol[string, string] = (*EchoProtocol)(nil)

// ByeCommand ends an echo session. It is echoed back before the connection
// closes.
const ByeCommand = "BYE"

// EchoProtocol returns every message unchanged until the client sends BYE.
// Nothing is echoed after that.
type EchoProtocol struct {
	terminate atomic.Bool
}

// NewEchoProtocol returns a protocol instance for one connection.
func NewEchoProtocol() *EchoProtocol {
	return &EchoProtocol{}
}

// Process echoes msg. The BYE check ignores the line terminator.
func (p *EchoProtocol) Process(msg string) (string, bool) {
	if p.terminate.Load() {
		return "", false
	}
	if strings.TrimRight(msg, "\r\n") == ByeCommand {
		p.terminate.Store(true)
	}
	return msg, true
}

// ShouldTerminate reports whether BYE was received.
func (p *EchoProtocol) ShouldTerminate() bool {
	return p.terminate.Load()
}
