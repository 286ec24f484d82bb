package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/pixelflood/protocol"
)

func TestNewBounded_Validation(t *testing.T) {
	_, err := NewBounded(BoundedConfig{Addr: "example:1234", MaxInFlight: 0})
	require.Error(t, err)
}

func TestNewBounded_DialFailure(t *testing.T) {
	dialer := &fakeDialer{failDial: map[int]bool{1: true}}

	_, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 4,
		Dial:        dialer.dial,
	})
	require.ErrorIs(t, err, errDialFault)
}

func TestBounded_DeliversEveryCommand(t *testing.T) {
	const m = 100

	dialer := &fakeDialer{}
	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 8,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < m; i++ {
		require.NoError(t, b.Submit(ctx, testPixel(i)))
	}
	require.NoError(t, b.Close())

	seen := make(map[string]int)
	for _, cmd := range dialer.conns[0].sentCmds() {
		seen[cmd.String()]++
	}

	require.Len(t, seen, m)
	for i := 0; i < m; i++ {
		assert.Equal(t, 1, seen[testPixel(i).String()], "command %d", i)
	}
}

func TestBounded_CapsInFlightSends(t *testing.T) {
	const j = 3

	gate := make(chan struct{})
	started := make(chan struct{}, 16)
	dialer := &fakeDialer{tmpl: fakeConn{gate: gate, started: started}}

	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: j,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// The first J submissions each claim a slot without blocking: one parks
	// inside Send, the rest wait for the connection mutex.
	for i := 0; i < j; i++ {
		require.NoError(t, b.Submit(ctx, testPixel(i)))
	}
	<-started

	// Submission J+1 finds no free slot and must suspend.
	blocked := make(chan error, 1)
	go func() {
		blocked <- b.Submit(ctx, testPixel(j))
	}()

	select {
	case err := <-blocked:
		t.Fatalf("submit should have blocked at the in-flight cap, returned %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit did not complete after a slot freed")
	}

	require.NoError(t, b.Close())
	assert.Len(t, dialer.conns[0].sentCmds(), j+1)
}

func TestBounded_SubmitHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 16)
	dialer := &fakeDialer{tmpl: fakeConn{gate: gate, started: started}}

	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 1,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)

	require.NoError(t, b.Submit(context.Background(), testPixel(0)))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan error, 1)
	go func() {
		blocked <- b.Submit(ctx, testPixel(1))
	}()

	cancel()
	select {
	case err := <-blocked:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("submit did not observe cancellation")
	}

	close(gate)
	require.NoError(t, b.Close())
}

func TestBounded_SendFailureDoesNotCancelSiblings(t *testing.T) {
	dialer := &fakeDialer{tmpl: fakeConn{failCalls: map[int]bool{2: true}}}

	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 4,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Submit(ctx, testPixel(i)))
	}
	require.NoError(t, b.Close())

	assert.Equal(t, uint64(1), b.Failures())
	assert.Len(t, dialer.conns[0].sentCmds(), 4)
}

func TestBounded_CanvasSize(t *testing.T) {
	dialer := &fakeDialer{tmpl: fakeConn{size: protocol.Vec2{X: 640, Y: 480}}}

	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 1,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	size, err := b.CanvasSize()
	require.NoError(t, err)
	assert.Equal(t, protocol.Vec2{X: 640, Y: 480}, size)
}

func TestBounded_CloseWaitsForInFlightSends(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 16)
	dialer := &fakeDialer{tmpl: fakeConn{gate: gate, started: started}}

	b, err := NewBounded(BoundedConfig{
		Addr:        "example:1234",
		MaxInFlight: 2,
		Dial:        dialer.dial,
	})
	require.NoError(t, err)

	require.NoError(t, b.Submit(context.Background(), testPixel(0)))
	<-started

	closed := make(chan error, 1)
	go func() {
		closed <- b.Close()
	}()

	select {
	case err := <-closed:
		t.Fatalf("close should have waited for the in-flight send, returned %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not finish after the send drained")
	}

	assert.True(t, dialer.conns[0].isClosed())
}
