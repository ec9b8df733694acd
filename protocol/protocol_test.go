package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func decodeAll(c *LineCodec, in string) []string {
	var out []string
	for i := 0; i < len(in); i++ {
		if msg, ok := c.Decode(in[i]); ok {
			out = append(out, msg)
		}
	}
	return out
}

func TestLineCodecSplitsLines(t *testing.T) {
	c := NewLineCodec()
	assert.Equal(t, []string{"hello\n", "\n", "world\n"}, decodeAll(c, "hello\n\nworld\npart"))
	assert.Equal(t, 4, c.Buffered())
	assert.Equal(t, []string{"partial\n"}, decodeAll(c, "ial\n"))
	assert.Zero(t, c.Buffered())
}

func TestLineCodecUTF8(t *testing.T) {
	c := NewLineCodec()
	assert.Equal(t, []string{"привет ✓\n"}, decodeAll(c, "привет ✓\n"))
	assert.Equal(t, []byte("héllo\n"), c.Encode("héllo\n"))
}

func TestEchoProtocol(t *testing.T) {
	p := NewEchoProtocol()

	resp, ok := p.Process("hello\n")
	assert.True(t, ok)
	assert.Equal(t, "hello\n", resp)
	assert.False(t, p.ShouldTerminate())

	resp, ok = p.Process("BYE\n")
	assert.True(t, ok)
	assert.Equal(t, "BYE\n", resp)
	assert.True(t, p.ShouldTerminate())

	_, ok = p.Process("after\n")
	assert.False(t, ok, "nothing is echoed after BYE")
}

func TestEchoProtocolByeVariants(t *testing.T) {
	for _, in := range []string{"BYE", "BYE\r\n"} {
		p := NewEchoProtocol()
		p.Process(in)
		assert.True(t, p.ShouldTerminate(), "%q", in)
	}
	for _, in := range []string{"bye\n", " BYE\n", "BYE!\n"} {
		p := NewEchoProtocol()
		p.Process(in)
		assert.False(t, p.ShouldTerminate(), "%q", in)
	}
}
