// Package api
// Author: momentics <momentics@gmail.com>
//
// Pluggable collaborator contracts consumed by the reactor engine.

package api

// Protocol turns decoded messages into optional responses.
//
// Process is invoked by at most one worker at a time per connection, in the
// order messages were decoded. It must not block indefinitely.
type Protocol[T, R any] interface {
	// Process handles one decoded message. ok == false means no response.
	Process(msg T) (resp R, ok bool)

	// ShouldTerminate reports whether the connection should be closed once
	// every queued response has been flushed.
	ShouldTerminate() bool
}

// EncoderDecoder frames the byte stream of one connection.
//
// Decode is stateful and fed one byte at a time; an instance must never be
// shared between connections. Encode is stateless.
type EncoderDecoder[T, R any] interface {
	// Decode consumes a single byte and returns a message once one is complete.
	Decode(b byte) (msg T, ok bool)

	// Encode serializes a response for transmission.
	Encode(resp R) []byte
}
