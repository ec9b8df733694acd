//go:build linux

package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/protocol"
)

func lineCodec() api.EncoderDecoder[string, string] { return protocol.NewLineCodec() }
func echoProto() api.Protocol[string, string]       { return protocol.NewEchoProtocol() }

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Workers = 4
	return cfg
}

// startEcho runs an echo server until the test ends.
func startEcho(t *testing.T, cfg *Config, opts ...ServerOption) *Server[string, string] {
	t.Helper()
	srv, err := NewServer(cfg, lineCodec, echoProto, opts...)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return srv
}

func dial(t *testing.T, srv *Server[string, string]) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.SetDeadline(time.Now().Add(10*time.Second)))
	return c
}

func forEachMode(t *testing.T, fn func(t *testing.T, cfg *Config)) {
	for _, blocking := range []bool{false, true} {
		name := "lock-free"
		if blocking {
			name = "synchronized"
		}
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BlockingSync = blocking
			fn(t, cfg)
		})
	}
}

func TestEchoAndBye(t *testing.T) {
	forEachMode(t, func(t *testing.T, cfg *Config) {
		srv := startEcho(t, cfg)
		c := dial(t, srv)
		r := bufio.NewReader(c)

		_, err := io.WriteString(c, "hello\n")
		require.NoError(t, err)
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "hello\n", line)

		_, err = io.WriteString(c, "BYE\n")
		require.NoError(t, err)
		line, err = r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "BYE\n", line)

		rest, err := io.ReadAll(r)
		require.NoError(t, err, "server closes after BYE")
		assert.Empty(t, rest)

		require.Eventually(t, func() bool {
			snap := srv.Metrics().GetSnapshot()
			return snap["connections_closed_total"] == 1 && snap["connections_active"] == 0
		}, 5*time.Second, 5*time.Millisecond)
	})
}

// slowByeCodec delays encoding the BYE reply so the selector can drain
// every earlier response while the worker still holds the last one.
type slowByeCodec struct {
	*protocol.LineCodec
}

func (c slowByeCodec) Encode(resp string) []byte {
	if resp == "BYE\n" {
		time.Sleep(200 * time.Millisecond)
	}
	return c.LineCodec.Encode(resp)
}

func TestByeReplyNotLostBehindSlowEncode(t *testing.T) {
	forEachMode(t, func(t *testing.T, cfg *Config) {
		srv, err := NewServer(cfg,
			func() api.EncoderDecoder[string, string] { return slowByeCodec{protocol.NewLineCodec()} },
			echoProto)
		require.NoError(t, err)
		errc := make(chan error, 1)
		go func() { errc <- srv.Serve(context.Background()) }()
		t.Cleanup(func() {
			_ = srv.Close()
			<-errc
		})

		c := dial(t, srv)
		big := strings.Repeat("z", 64*1024) + "\n"
		go func() { _, _ = io.WriteString(c, big+"BYE\n") }()

		got, err := io.ReadAll(c)
		require.NoError(t, err)
		require.Len(t, got, len(big)+4, "BYE reply lost")
		assert.True(t, strings.HasSuffix(string(got), "\nBYE\n"))
	})
}

func TestManyClientsKeepOrder(t *testing.T) {
	forEachMode(t, func(t *testing.T, cfg *Config) {
		srv := startEcho(t, cfg)

		const clients = 16
		const lines = 200
		var wg sync.WaitGroup
		for i := 0; i < clients; i++ {
			c := dial(t, srv)
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				var sb strings.Builder
				for j := 0; j < lines; j++ {
					sb.WriteString(strings.Repeat("x", id))
					sb.WriteString("-")
					sb.WriteString(string(rune('a' + j%26)))
					sb.WriteString("\n")
				}
				want := sb.String()
				go func() { _, _ = io.WriteString(c, want) }()

				got := make([]byte, len(want))
				if _, err := io.ReadFull(c, got); err != nil {
					t.Errorf("client %d: %v", id, err)
					return
				}
				if string(got) != want {
					t.Errorf("client %d: echoed stream differs", id)
				}
			}(i)
		}
		wg.Wait()

		snap := srv.Metrics().GetSnapshot()
		assert.Equal(t, float64(clients), snap["connections_accepted_total"])
		assert.Positive(t, snap["tasks_submitted_total"])
	})
}

func TestLargeResponsePartialWrites(t *testing.T) {
	forEachMode(t, func(t *testing.T, cfg *Config) {
		cfg.SendBufferSize = 4096
		srv := startEcho(t, cfg)
		c := dial(t, srv)

		line := strings.Repeat("z", 1<<20) + "\n"
		go func() { _, _ = io.WriteString(c, line) }()

		// let the server fill its send buffer before the client reads
		time.Sleep(50 * time.Millisecond)
		got := make([]byte, len(line))
		_, err := io.ReadFull(c, got)
		require.NoError(t, err)
		assert.True(t, bytes.Equal([]byte(line), got))
	})
}

func TestPinnedSelectorServes(t *testing.T) {
	srv := startEcho(t, testConfig(), WithSelectorCPU(0))
	c := dial(t, srv)
	_, err := io.WriteString(c, "pinned\n")
	require.NoError(t, err)
	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "pinned\n", line)
}

func TestAcceptRateLimit(t *testing.T) {
	srv := startEcho(t, testConfig(), WithAcceptRate(1, 1))

	first := dial(t, srv)
	_, err := io.WriteString(first, "one\n")
	require.NoError(t, err)
	line, err := bufio.NewReader(first).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "one\n", line)

	second := dial(t, srv)
	_, err = io.ReadAll(second)
	assert.NoError(t, err, "over-limit connection is closed on accept")

	require.Eventually(t, func() bool {
		return srv.Metrics().GetSnapshot()["connections_rejected_total"] == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, srv.Metrics().GetSnapshot()["connections_accepted_total"])
}

func TestCloseUnblocksServe(t *testing.T) {
	srv, err := NewServer(testConfig(), lineCodec, echoProto)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background()) }()

	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = io.WriteString(c, "ping\n")
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	<-srv.Done()

	// open connections are closed on shutdown
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, srv.Serve(context.Background()), api.ErrServerClosed)
}

func TestContextCancelStopsServe(t *testing.T) {
	srv, err := NewServer(testConfig(), lineCodec, echoProto)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve ignored context cancellation")
	}
}

func TestCloseBeforeServe(t *testing.T) {
	srv, err := NewServer(testConfig(), lineCodec, echoProto)
	require.NoError(t, err)
	addr := srv.Addr().String()

	require.NoError(t, srv.Close())
	<-srv.Done()
	assert.ErrorIs(t, srv.Serve(context.Background()), api.ErrServerClosed)

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener is closed")
}

func TestServeTwice(t *testing.T) {
	srv := startEcho(t, testConfig())
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.state == stateRunning
	}, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, srv.Serve(context.Background()), api.ErrAlreadyRunning)
}

func TestNewServerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Port = -1
	_, err := NewServer(cfg, lineCodec, echoProto)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = NewServer[string, string](testConfig(), nil, echoProto)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	cfg = testConfig()
	cfg.Workers = 0
	cfg.MaxEvents = 0
	srv, err := NewServer(cfg, lineCodec, echoProto, WithWorkers(2), WithBlockingSync(true))
	require.NoError(t, err)
	defer srv.Close()
	assert.Equal(t, 2, srv.cfg.Workers)
	assert.True(t, srv.cfg.BlockingSync)
	assert.Equal(t, 128, srv.cfg.MaxEvents)
	assert.NotZero(t, srv.Addr().(*net.TCPAddr).Port)
}

func TestPortInUse(t *testing.T) {
	first, err := NewServer(testConfig(), lineCodec, echoProto)
	require.NoError(t, err)
	defer first.Close()

	cfg := testConfig()
	cfg.Port = first.Addr().(*net.TCPAddr).Port
	_, err = NewServer(cfg, lineCodec, echoProto)
	assert.Error(t, err)
}
