package flutserver

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/pixelflood/logger"
)

// Server accepts TCP connections and runs one session per connection until
// Stop is called. All sessions share one Canvas.
type Server struct {
	Logger logger.Logger
	Canvas *Canvas

	listener net.Listener
	running  atomic.Bool
	nextID   atomic.Uint32
	sessions sync.Map // uint32 -> *session
	wg       sync.WaitGroup
}

// New creates a Server over the given canvas.
//
// Parameters:
//   - canvas: The shared canvas; must not be nil
//   - log: Logger for accept and session events; nil means discard
//
// Returns:
//   - The Server, ready for Start
func New(canvas *Canvas, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		Logger: log,
		Canvas: canvas,
	}
}

// Start binds to addr and begins accepting connections in a goroutine.
// Use an addr ending in ":0" to bind an ephemeral port and read it back
// with Addr.
//
// Parameters:
//   - addr: The "host:port" to listen on
//
// Returns:
//   - An error if the server is already running or listening fails
func (s *Server) Start(addr string) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.Logger.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listen address, e.g. "127.0.0.1:37521". Empty
// before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop closes the listener and every active session, then waits for the
// session goroutines to exit. Safe to call when not running.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	_ = s.listener.Close()

	s.sessions.Range(func(_, v any) bool {
		v.(*session).close()
		return true
	})

	s.wg.Wait()
	s.Logger.Info("server stopped")
}

// acceptLoop accepts connections until the listener closes. Each connection
// gets an ID and a session goroutine.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Logger.Error("accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		id := s.nextID.Add(1)
		sess := newSession(id, conn, s.Canvas, s.Logger.With(logger.Field{Key: "session", Value: id}))
		s.sessions.Store(id, sess)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sessions.Delete(id)
			sess.handle()
		}()
	}
}
