// Package sock provides the single-connection layer of the Pixelflut client:
// one Sock owns one TCP session plus its buffered read/write state, and knows
// how to send encoded commands and read response lines. A Sock is not safe
// for concurrent use; the dispatch strategies own the synchronization.
package sock

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cyberinferno/pixelflood/protocol"
)

// ErrConnect is returned (wrapped) by Connect when DNS resolution or the TCP
// handshake fails. It is fatal to startup; nothing is retried.
var ErrConnect = errors.New("connect failed")

// Config holds connection settings for a Sock.
type Config struct {
	// Addr is the "host:port" of the Pixelflut server.
	Addr string
	// DialTimeout is the max duration for establishing the connection.
	DialTimeout time.Duration
	// WriteTimeout is the max duration for a single send; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout is the max duration to wait for a response line; 0 means no timeout.
	ReadTimeout time.Duration
}

// DefaultConfig returns a Config for the given address with a 10s dial
// timeout, a 10s write timeout and no read timeout. Override fields as
// needed before passing to Connect.
//
// Parameters:
//   - addr: The "host:port" to connect to
//
// Returns:
//   - A Config with default timeouts
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  0,
	}
}

// Sock is one live connection to a Pixelflut server. Every command sent on a
// Sock is fully written and flushed before the next send begins, so the wire
// order of a single Sock is strict FIFO.
type Sock struct {
	cfg    Config
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// Connect opens a TCP session to the configured address, resolving the host
// if needed.
//
// Parameters:
//   - cfg: Connection settings, e.g. from DefaultConfig
//
// Returns:
//   - The connected Sock, or an error wrapping ErrConnect on resolution or
//     handshake failure
func Connect(cfg Config) (*Sock, error) {
	dialer := net.Dialer{Timeout: cfg.DialTimeout}

	conn, err := dialer.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, cfg.Addr, err)
	}

	return New(cfg, conn), nil
}

// New wraps an already-established connection in a Sock. Used by Connect and
// by tests that supply one end of a pipe.
//
// Parameters:
//   - cfg: Connection settings; only the timeouts are consulted
//   - conn: The established connection; the Sock takes ownership
//
// Returns:
//   - The wrapped Sock
func New(cfg Config, conn net.Conn) *Sock {
	return &Sock{
		cfg:    cfg,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

// Send encodes the command, writes its line and flushes. Exactly one line
// reaches the wire per call; no partial line is ever left buffered.
//
// Parameters:
//   - cmd: The command to send
//
// Returns:
//   - An error if the write or flush fails (e.g. peer reset)
func (s *Sock) Send(cmd protocol.Cmd) error {
	if s.cfg.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := s.writer.WriteString(cmd.String()); err != nil {
		return err
	}

	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}

	return s.writer.Flush()
}

// ReadLine reads one newline-terminated line from the server, blocking until
// data or end-of-stream arrives. The trailing newline is stripped.
//
// Returns:
//   - The line without its newline; empty at clean end-of-stream
//   - An error on stream failure
func (s *Sock) ReadLine() (string, error) {
	if s.cfg.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return "", err
		}
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, nil
		}

		return "", err
	}

	return line[:len(line)-1], nil
}

// QuerySize asks the server for the canvas dimensions: it sends SIZE, reads
// one response line and parses it.
//
// Returns:
//   - The canvas size as (width, height)
//   - The send, read or parse error, whichever step failed
func (s *Sock) QuerySize() (protocol.Vec2, error) {
	if err := s.Send(protocol.Size()); err != nil {
		return protocol.Vec2{}, err
	}

	line, err := s.ReadLine()
	if err != nil {
		return protocol.Vec2{}, err
	}

	return protocol.ParseSize(line)
}

// RemoteAddr returns the address of the connected server.
func (s *Sock) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Close closes the underlying connection. Buffered but unflushed data is
// discarded; Send never leaves any behind.
//
// Returns:
//   - The error from closing the connection
func (s *Sock) Close() error {
	return s.conn.Close()
}
