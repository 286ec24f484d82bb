package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/pixelflood/logger"
	"github.com/cyberinferno/pixelflood/protocol"
)

// PoolConfig holds construction settings for a Pool.
type PoolConfig struct {
	// Addr is the "host:port" of the Pixelflut server.
	Addr string
	// Workers is the number of sender connections; must be at least 1.
	Workers int
	// QueueSize is the capacity of each worker's command queue.
	QueueSize int
	// Dial opens the pool's connections; nil means DefaultDial.
	Dial DialFunc
	// Rand seeds worker selection; nil means a time-seeded source.
	Rand rand.Source
	// Logger receives per-send failures; nil means discard.
	Logger logger.Logger
}

// DefaultPoolConfig returns a PoolConfig for the given address with 4
// workers and a queue capacity of 1024 per worker.
//
// Parameters:
//   - addr: The "host:port" to connect to
//
// Returns:
//   - A PoolConfig with defaults; override fields as needed before NewPool
func DefaultPoolConfig(addr string) PoolConfig {
	return PoolConfig{
		Addr:      addr,
		Workers:   4,
		QueueSize: 1024,
	}
}

// Pool fans submitted commands out over Workers independent connections.
// Each worker goroutine owns one connection and one bounded queue; Submit
// pushes onto a uniformly random worker's queue and blocks when that queue
// is full, bounding the unsent backlog to Workers x QueueSize. One extra
// connection is reserved for CanvasSize and never enters the balanced set.
type Pool struct {
	queues   []chan protocol.Cmd
	conns    []Conn
	reserved Conn

	rngMu sync.Mutex
	rng   *rand.Rand

	wg       sync.WaitGroup
	failures atomic.Uint64
	closed   atomic.Bool
	log      logger.Logger
}

// NewPool dials Workers+1 connections (one reserved for the size query) and
// starts one sender goroutine per worker connection. Any dial failure aborts
// construction: already-opened connections are closed and no partial pool is
// left running.
//
// Parameters:
//   - cfg: Pool settings, e.g. from DefaultPoolConfig
//
// Returns:
//   - The running Pool, or the dial error that aborted construction
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("pool needs at least 1 worker, got %d", cfg.Workers)
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1024
	}

	if cfg.Dial == nil {
		cfg.Dial = DefaultDial
	}

	if cfg.Rand == nil {
		cfg.Rand = rand.NewSource(time.Now().UnixNano())
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	p := &Pool{
		rng: rand.New(cfg.Rand),
		log: cfg.Logger,
	}

	reserved, err := cfg.Dial(cfg.Addr)
	if err != nil {
		return nil, err
	}

	p.reserved = reserved

	for i := 0; i < cfg.Workers; i++ {
		conn, err := cfg.Dial(cfg.Addr)
		if err != nil {
			p.abort()
			return nil, err
		}

		p.conns = append(p.conns, conn)
		p.queues = append(p.queues, make(chan protocol.Cmd, cfg.QueueSize))
	}

	for i := range p.conns {
		p.wg.Add(1)
		go p.worker(i, p.conns[i], p.queues[i])
	}

	return p, nil
}

// worker drains one queue onto one connection until the queue is closed.
// A failed send is logged and counted; the loop continues with the next
// command.
func (p *Pool) worker(id int, conn Conn, queue <-chan protocol.Cmd) {
	defer p.wg.Done()

	log := p.log.With(logger.Field{Key: "worker", Value: id})
	for cmd := range queue {
		if err := conn.Send(cmd); err != nil {
			p.failures.Add(1)
			log.Error("send failed", logger.Field{Key: "cmd", Value: cmd.String()}, logger.Field{Key: "error", Value: err})
		}
	}
}

// Submit pushes the command onto a uniformly random worker's queue. If that
// queue is full the call blocks until the worker frees space or ctx is done.
//
// Parameters:
//   - ctx: Bounds the wait for queue space
//   - cmd: The command to enqueue
//
// Returns:
//   - nil once the command is queued, or ctx.Err() if ctx ended first
func (p *Pool) Submit(ctx context.Context, cmd protocol.Cmd) error {
	select {
	case p.pick() <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pick selects one worker queue uniformly at random. Random rather than
// round-robin: concurrent producers never couple to one worker's transient
// slowness.
func (p *Pool) pick() chan protocol.Cmd {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.queues[p.rng.Intn(len(p.queues))]
}

// CanvasSize queries the canvas dimensions on the reserved connection, which
// carries no paint traffic.
//
// Returns:
//   - The canvas size as (width, height), or the query error
func (p *Pool) CanvasSize() (protocol.Vec2, error) {
	return p.reserved.QuerySize()
}

// Failures returns how many individual sends have failed so far.
func (p *Pool) Failures() uint64 {
	return p.failures.Load()
}

// Close closes every queue, waits for the workers to drain them, then closes
// all connections. Idempotent; Submit must not be called concurrently with
// or after Close.
//
// Returns:
//   - The first error encountered while closing connections, if any
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, q := range p.queues {
		close(q)
	}

	p.wg.Wait()

	var first error
	for _, conn := range p.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}

	if err := p.reserved.Close(); err != nil && first == nil {
		first = err
	}

	return first
}

// abort tears down whatever construction had opened so far.
func (p *Pool) abort() {
	if p.reserved != nil {
		_ = p.reserved.Close()
	}

	for _, conn := range p.conns {
		_ = conn.Close()
	}
}
