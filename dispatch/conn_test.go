package dispatch

import (
	"errors"
	"sync"

	"github.com/cyberinferno/pixelflood/protocol"
)

// fakeConn is a scriptable Conn double. Send can be made to fail for chosen
// calls and to block on a gate so tests can observe backpressure.
type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Cmd
	calls  int
	closed bool

	// failCalls holds 1-based Send call numbers that return an error.
	failCalls map[int]bool

	// started receives one value per Send entry when non-nil.
	started chan struct{}
	// gate blocks every Send until it is closed, when non-nil.
	gate chan struct{}

	size protocol.Vec2
}

var errSendFault = errors.New("simulated send fault")

func (f *fakeConn) Send(cmd protocol.Cmd) error {
	if f.started != nil {
		f.started <- struct{}{}
	}

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failCalls[f.calls] {
		return errSendFault
	}

	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeConn) QuerySize() (protocol.Vec2, error) {
	return f.size, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) sentCmds() []protocol.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Cmd(nil), f.sent...)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer hands out a fresh fakeConn per dial and remembers them in order.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	tmpl  fakeConn

	// failDial holds 1-based dial call numbers that return an error.
	failDial map[int]bool
	calls    int
}

var errDialFault = errors.New("simulated dial fault")

func (d *fakeDialer) dial(string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.failDial[d.calls] {
		return nil, errDialFault
	}

	conn := &fakeConn{
		failCalls: d.tmpl.failCalls,
		started:   d.tmpl.started,
		gate:      d.tmpl.gate,
		size:      d.tmpl.size,
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}
