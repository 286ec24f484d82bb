package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/cyberinferno/pixelflood/logger"
	"github.com/cyberinferno/pixelflood/protocol"
)

// BoundedConfig holds construction settings for a Bounded dispatcher.
type BoundedConfig struct {
	// Addr is the "host:port" of the Pixelflut server.
	Addr string
	// MaxInFlight caps how many submitted sends may be in flight at once;
	// must be at least 1.
	MaxInFlight int64
	// Dial opens the single connection; nil means DefaultDial.
	Dial DialFunc
	// Logger receives per-send failures; nil means discard.
	Logger logger.Logger
}

// DefaultBoundedConfig returns a BoundedConfig for the given address with an
// in-flight cap of 256.
//
// Parameters:
//   - addr: The "host:port" to connect to
//
// Returns:
//   - A BoundedConfig with defaults; override fields as needed before NewBounded
func DefaultBoundedConfig(addr string) BoundedConfig {
	return BoundedConfig{
		Addr:        addr,
		MaxInFlight: 256,
	}
}

// Bounded serializes all sends over one shared connection while letting up
// to MaxInFlight submitted sends wait on the connection's mutex at once. The
// semaphore gives a concurrency cap, not parallelism: the wire sees one
// command at a time, in whatever order the mutex grants the waiters.
type Bounded struct {
	connMu sync.Mutex
	conn   Conn

	sem *semaphore.Weighted
	max int64

	failures atomic.Uint64
	closed   atomic.Bool
	log      logger.Logger
}

// NewBounded dials the single connection and returns the dispatcher.
//
// Parameters:
//   - cfg: Settings, e.g. from DefaultBoundedConfig
//
// Returns:
//   - The Bounded dispatcher, or the dial error
func NewBounded(cfg BoundedConfig) (*Bounded, error) {
	if cfg.MaxInFlight < 1 {
		return nil, fmt.Errorf("bounded dispatcher needs MaxInFlight >= 1, got %d", cfg.MaxInFlight)
	}

	if cfg.Dial == nil {
		cfg.Dial = DefaultDial
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	conn, err := cfg.Dial(cfg.Addr)
	if err != nil {
		return nil, err
	}

	return &Bounded{
		conn: conn,
		sem:  semaphore.NewWeighted(cfg.MaxInFlight),
		max:  cfg.MaxInFlight,
		log:  cfg.Logger,
	}, nil
}

// Submit claims one in-flight slot, blocking while all MaxInFlight slots are
// taken, then completes the serialized send in the background. A failed send
// is logged and counted; it never cancels sibling sends.
//
// Parameters:
//   - ctx: Bounds the wait for a free slot
//
// Returns:
//   - nil once a slot is claimed, or ctx.Err() if ctx ended first
func (b *Bounded) Submit(ctx context.Context, cmd protocol.Cmd) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	go func() {
		defer b.sem.Release(1)

		b.connMu.Lock()
		err := b.conn.Send(cmd)
		b.connMu.Unlock()

		if err != nil {
			b.failures.Add(1)
			b.log.Error("send failed", logger.Field{Key: "cmd", Value: cmd.String()}, logger.Field{Key: "error", Value: err})
		}
	}()

	return nil
}

// CanvasSize queries the canvas dimensions on the shared connection,
// serialized with any in-flight sends.
//
// Returns:
//   - The canvas size as (width, height), or the query error
func (b *Bounded) CanvasSize() (protocol.Vec2, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return b.conn.QuerySize()
}

// Failures returns how many individual sends have failed so far.
func (b *Bounded) Failures() uint64 {
	return b.failures.Load()
}

// Close waits for every in-flight send to finish, then closes the
// connection. Submit must not be called concurrently with or after Close.
//
// Returns:
//   - The error from closing the connection
func (b *Bounded) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Claiming every slot is the drain barrier.
	if err := b.sem.Acquire(context.Background(), b.max); err != nil {
		return err
	}

	return b.conn.Close()
}
