// File: protocol/line_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Newline-delimited text framing.

package protocol

import "github.com/momentics/hioload-reactor/api"

var _ api.EncoderDecoder[string, string] = (*LineCodec)(nil)

// LineCodec frames a byte stream into lines. A decoded message keeps its
// trailing '\n' so that echoing it reproduces the input exactly.
// Multi-byte UTF-8 sequences pass through untouched.
type LineCodec struct {
	line []byte
}

// NewLineCodec returns a codec for a single connection.
func NewLineCodec() *LineCodec {
	return &LineCodec{line: make([]byte, 0, 64)}
}

// Decode appends b to the current line and returns the line once b is '\n'.
func (c *LineCodec) Decode(b byte) (string, bool) {
	c.line = append(c.line, b)
	if b != '\n' {
		return "", false
	}
	msg := string(c.line)
	c.line = c.line[:0]
	return msg, true
}

// Encode returns the UTF-8 bytes of resp.
func (c *LineCodec) Encode(resp string) []byte {
	return []byte(resp)
}

// Buffered returns the number of bytes of the incomplete line.
func (c *LineCodec) Buffered() int {
	return len(c.line)
}
