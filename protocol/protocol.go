// Package protocol implements the line-based Pixelflut wire protocol:
// encoding of outgoing commands and parsing of the server's SIZE response.
// All types are small immutable values and the package holds no state.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedSize is returned (wrapped) by ParseSize when the server's
// response to a SIZE command is missing a field or a field is not an integer.
var ErrMalformedSize = errors.New("malformed SIZE response")

// Vec2 is a 2D vector of non-negative canvas coordinates. When returned by
// ParseSize it is interpreted as (width, height).
type Vec2 struct {
	X uint32
	Y uint32
}

// String returns the vector as "x y", the form used in PX commands.
func (v Vec2) String() string {
	return fmt.Sprintf("%d %d", v.X, v.Y)
}

// RGB is a 24-bit color with 8-bit red, green and blue components.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// String returns the color as six lowercase hex digits, zero-padded,
// e.g. RGB{1, 2, 255} -> "0102ff".
func (c RGB) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// Kind discriminates the Cmd variants.
type Kind int

const (
	KindHelp   Kind = iota // HELP
	KindSize               // SIZE
	KindSetPx              // PX <x> <y> <rrggbb>
	KindGetPx              // PX <x> <y>
)

// Cmd is a single Pixelflut command. It is a tagged value: Kind selects the
// variant and At/Color carry the payload for the PX variants. Cmds are
// cheaply copyable and safe to share.
type Cmd struct {
	Kind  Kind
	At    Vec2
	Color RGB
}

// Help returns the HELP command.
func Help() Cmd {
	return Cmd{Kind: KindHelp}
}

// Size returns the SIZE command, used to query the canvas dimensions.
func Size() Cmd {
	return Cmd{Kind: KindSize}
}

// SetPx returns a command that paints the pixel at the given coordinate.
//
// Parameters:
//   - at: Canvas coordinate of the pixel
//   - color: Color to paint it
//
// Returns:
//   - A Cmd encoding to "PX <x> <y> <rrggbb>"
func SetPx(at Vec2, color RGB) Cmd {
	return Cmd{Kind: KindSetPx, At: at, Color: color}
}

// GetPx returns a command that asks the server for the color of the pixel at
// the given coordinate.
//
// Parameters:
//   - at: Canvas coordinate of the pixel
//
// Returns:
//   - A Cmd encoding to "PX <x> <y>"
func GetPx(at Vec2) Cmd {
	return Cmd{Kind: KindGetPx, At: at}
}

// String encodes the command as its wire text, without the trailing newline.
func (c Cmd) String() string {
	switch c.Kind {
	case KindHelp:
		return "HELP"
	case KindSize:
		return "SIZE"
	case KindSetPx:
		return fmt.Sprintf("PX %d %d %s", c.At.X, c.At.Y, c.Color)
	case KindGetPx:
		return fmt.Sprintf("PX %d %d", c.At.X, c.At.Y)
	default:
		return "HELP"
	}
}

// ParseSize parses the server's response to a SIZE command, a line of the
// form "SIZE <width> <height>". The leading token is skipped without being
// inspected; exactly two further integer fields are required.
//
// Parameters:
//   - line: The response line, with or without its trailing newline
//
// Returns:
//   - The canvas size as a Vec2 (width, height)
//   - An error wrapping ErrMalformedSize if a field is missing or not an integer
func ParseSize(line string) (Vec2, error) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 3 {
		return Vec2{}, fmt.Errorf("%w: want 2 fields after the leading token in %q", ErrMalformedSize, strings.TrimSpace(line))
	}

	width, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Vec2{}, fmt.Errorf("%w: bad width %q", ErrMalformedSize, fields[1])
	}

	height, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Vec2{}, fmt.Errorf("%w: bad height %q", ErrMalformedSize, fields[2])
	}

	return Vec2{X: uint32(width), Y: uint32(height)}, nil
}
