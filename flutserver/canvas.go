// Package flutserver implements a minimal in-memory Pixelflut server: a
// shared canvas behind a lock and a TCP accept loop that hands each
// connection to a line-oriented session. It exists for local development and
// as the far end in end-to-end tests of the client.
package flutserver

import (
	"sync"

	"github.com/cyberinferno/pixelflood/protocol"
)

// Canvas is the server-side pixel grid. It is safe for concurrent use by
// any number of sessions.
type Canvas struct {
	mu     sync.RWMutex
	size   protocol.Vec2
	pixels []protocol.RGB
}

// NewCanvas creates a width x height canvas with all pixels black.
//
// Parameters:
//   - width: Canvas width in pixels; must be positive
//   - height: Canvas height in pixels; must be positive
//
// Returns:
//   - The new Canvas
func NewCanvas(width, height uint32) *Canvas {
	return &Canvas{
		size:   protocol.Vec2{X: width, Y: height},
		pixels: make([]protocol.RGB, width*height),
	}
}

// Size returns the canvas dimensions as (width, height).
func (c *Canvas) Size() protocol.Vec2 {
	return c.size
}

// Set paints the pixel at the given coordinate. Out-of-range coordinates
// are rejected.
//
// Parameters:
//   - at: The coordinate to paint
//   - color: The color to paint it
//
// Returns:
//   - true if the pixel was painted, false if at is outside the canvas
func (c *Canvas) Set(at protocol.Vec2, color protocol.RGB) bool {
	if at.X >= c.size.X || at.Y >= c.size.Y {
		return false
	}

	c.mu.Lock()
	c.pixels[at.Y*c.size.X+at.X] = color
	c.mu.Unlock()

	return true
}

// Get returns the color of the pixel at the given coordinate.
//
// Parameters:
//   - at: The coordinate to read
//
// Returns:
//   - The pixel's color and true, or the zero color and false if at is
//     outside the canvas
func (c *Canvas) Get(at protocol.Vec2) (protocol.RGB, bool) {
	if at.X >= c.size.X || at.Y >= c.size.Y {
		return protocol.RGB{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pixels[at.Y*c.size.X+at.X], true
}
