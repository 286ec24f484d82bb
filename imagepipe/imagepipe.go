// Package imagepipe turns an image file into the pixel sequence the painter
// consumes: load, optionally crunch down to a tiny intermediate, stretch to
// the canvas dimensions, then flatten to (coordinate, color) pairs row by
// row. It feeds the dispatch core but performs no network work itself.
package imagepipe

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/cyberinferno/pixelflood/painter"
	"github.com/cyberinferno/pixelflood/protocol"
)

// Options controls how the source image is fitted to the canvas.
type Options struct {
	// Crunch first downscales the image to CrunchSize x CrunchSize with
	// nearest-neighbor, producing deliberately low-quality output.
	Crunch bool
	// CrunchSize is the side length of the crunch intermediate.
	CrunchSize int
}

// DefaultOptions returns Options with crunching off and a crunch size of 16.
func DefaultOptions() Options {
	return Options{CrunchSize: 16}
}

// Load opens and decodes an image file. PNG, JPEG and GIF are supported.
//
// Parameters:
//   - path: Path to the image file
//
// Returns:
//   - The decoded image, or an error if opening or decoding fails
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	return img, nil
}

// Stretch resizes the image to exactly the canvas dimensions, ignoring
// aspect ratio. Crunched images use nearest-neighbor throughout; otherwise
// Catmull-Rom resampling keeps the stretch smooth.
//
// Parameters:
//   - img: The source image
//   - canvas: Target dimensions as (width, height)
//   - opts: Crunch settings, e.g. from DefaultOptions
//
// Returns:
//   - The resized image
func Stretch(img image.Image, canvas protocol.Vec2, opts Options) image.Image {
	scaler := draw.Scaler(draw.CatmullRom)
	if opts.Crunch {
		scaler = draw.NearestNeighbor
		img = scale(img, opts.CrunchSize, opts.CrunchSize, draw.NearestNeighbor)
	}

	return scale(img, int(canvas.X), int(canvas.Y), scaler)
}

// Flatten converts the image to the painter's pixel sequence, row-major from
// the top-left corner. Coordinates are canvas-relative starting at (0,0)
// regardless of the image's own bounds origin.
//
// Parameters:
//   - img: The image, already resized to the canvas dimensions
//
// Returns:
//   - One Pixel per image position, in row-major order
func Flatten(img image.Image) []painter.Pixel {
	bounds := img.Bounds()
	pixels := make([]painter.Pixel, 0, bounds.Dx()*bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels = append(pixels, painter.Pixel{
				At: protocol.Vec2{
					X: uint32(x - bounds.Min.X),
					Y: uint32(y - bounds.Min.Y),
				},
				Color: protocol.RGB{
					R: uint8(r >> 8),
					G: uint8(g >> 8),
					B: uint8(b >> 8),
				},
			})
		}
	}

	return pixels
}

func scale(img image.Image, width, height int, scaler draw.Scaler) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
