// Package dispatch implements the two concurrency strategies that fan a
// stream of Pixelflut commands out over live connections: a pool of workers
// each owning one connection and a bounded queue, and a single shared
// connection behind a mutex with a cap on in-flight sends. Both are selected
// by constructing the one you want; they satisfy the same Dispatcher
// interface.
package dispatch

import (
	"context"

	"github.com/cyberinferno/pixelflood/protocol"
	"github.com/cyberinferno/pixelflood/sock"
)

// Conn is the connection capability a strategy needs. *sock.Sock satisfies
// it; tests substitute doubles.
type Conn interface {
	// Send encodes and writes one command, flushing it fully to the wire.
	Send(cmd protocol.Cmd) error

	// QuerySize asks the server for the canvas dimensions.
	QuerySize() (protocol.Vec2, error)

	// Close closes the connection.
	Close() error
}

// DialFunc opens one Conn to the given address. Strategies use it for every
// connection they establish; the default dials a real TCP socket.
type DialFunc func(addr string) (Conn, error)

// DefaultDial is the DialFunc used when a config leaves Dial nil. It opens a
// TCP connection with sock.DefaultConfig timeouts.
func DefaultDial(addr string) (Conn, error) {
	return sock.Connect(sock.DefaultConfig(addr))
}

// Dispatcher accepts commands for delivery to the server. Submission
// suspends the calling goroutine until the command is accepted (queued or
// slotted); it never fails on a full queue. Per-command send failures are
// logged and counted, never surfaced through Submit.
type Dispatcher interface {
	// Submit hands one command to the strategy. It blocks while the strategy
	// is at capacity and returns early only if ctx is done. Submit must not
	// be called after Close.
	Submit(ctx context.Context, cmd protocol.Cmd) error

	// CanvasSize queries the server once for the canvas dimensions.
	CanvasSize() (protocol.Vec2, error)

	// Failures returns how many individual sends have failed so far.
	Failures() uint64

	// Close drains everything already submitted, then closes the
	// connections. It blocks until the drain completes.
	Close() error
}
