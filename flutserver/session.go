package flutserver

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/cyberinferno/pixelflood/logger"
	"github.com/cyberinferno/pixelflood/protocol"
)

const helpText = "HELP: commands are HELP, SIZE, PX <x> <y> [<rrggbb>]"

// session handles the line protocol on one accepted connection.
type session struct {
	id     uint32
	conn   net.Conn
	canvas *Canvas
	log    logger.Logger

	closeOnce sync.Once
}

func newSession(id uint32, conn net.Conn, canvas *Canvas, log logger.Logger) *session {
	return &session{
		id:     id,
		conn:   conn,
		canvas: canvas,
		log:    log,
	}
}

// handle reads commands line by line until the peer disconnects or the
// session is closed. Malformed lines get an ERR reply; the session stays up.
func (s *session) handle() {
	defer s.close()

	s.log.Debug("session opened", logger.Field{Key: "remote", Value: s.conn.RemoteAddr().String()})

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		if reply := s.dispatch(scanner.Text()); reply != "" {
			if _, err := fmt.Fprintln(s.conn, reply); err != nil {
				s.log.Debug("write failed", logger.Field{Key: "error", Value: err})
				return
			}
		}
	}

	s.log.Debug("session closed")
}

// dispatch executes one command line and returns the reply line, or "" when
// the command produces no reply.
func (s *session) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "HELP":
		return helpText
	case "SIZE":
		size := s.canvas.Size()
		return fmt.Sprintf("SIZE %d %d", size.X, size.Y)
	case "PX":
		return s.px(fields)
	default:
		return "ERR unknown command"
	}
}

// px handles both PX forms: "PX x y rrggbb" paints, "PX x y" reads back.
func (s *session) px(fields []string) string {
	if len(fields) != 3 && len(fields) != 4 {
		return "ERR usage: PX <x> <y> [<rrggbb>]"
	}

	x, errX := strconv.ParseUint(fields[1], 10, 32)
	y, errY := strconv.ParseUint(fields[2], 10, 32)
	if errX != nil || errY != nil {
		return "ERR bad coordinate"
	}

	at := protocol.Vec2{X: uint32(x), Y: uint32(y)}

	if len(fields) == 3 {
		color, ok := s.canvas.Get(at)
		if !ok {
			return "ERR coordinate outside canvas"
		}

		return fmt.Sprintf("PX %d %d %s", at.X, at.Y, color)
	}

	color, err := parseColor(fields[3])
	if err != nil {
		return "ERR bad color"
	}

	if !s.canvas.Set(at, color) {
		return "ERR coordinate outside canvas"
	}

	return ""
}

// parseColor decodes exactly six hex digits into an RGB value.
func parseColor(s string) (protocol.RGB, error) {
	if len(s) != 6 {
		return protocol.RGB{}, fmt.Errorf("want 6 hex digits, got %q", s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return protocol.RGB{}, err
	}

	return protocol.RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// close shuts the connection down; safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}
