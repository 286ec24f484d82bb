// Package painter drives a finite pixel sequence through a dispatch
// strategy. The sequence is split into contiguous chunks painted by
// concurrent producer goroutines; per-pixel failures are counted by the
// dispatcher and reported at the end, never aborting the run.
package painter

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/pixelflood/dispatch"
	"github.com/cyberinferno/pixelflood/logger"
	"github.com/cyberinferno/pixelflood/protocol"
)

// Pixel pairs one canvas coordinate with the color to paint there.
type Pixel struct {
	At    protocol.Vec2
	Color protocol.RGB
}

// Config holds settings for a Painter.
type Config struct {
	// Chunks is how many contiguous slices the pixel sequence is split into,
	// each driven by its own producer goroutine. Must be at least 1.
	Chunks int
	// Logger receives run progress and the failure summary; nil means discard.
	Logger logger.Logger
}

// DefaultConfig returns a Config with 4 chunks.
func DefaultConfig() Config {
	return Config{Chunks: 4}
}

// Painter submits every pixel of a sequence to a Dispatcher and waits for
// the dispatcher to drain.
type Painter struct {
	d   dispatch.Dispatcher
	cfg Config
	log logger.Logger
}

// New creates a Painter over an already-constructed Dispatcher.
//
// Parameters:
//   - d: The dispatch strategy to paint through; the Painter takes ownership
//     and closes it when Run finishes
//   - cfg: Painter settings, e.g. from DefaultConfig
//
// Returns:
//   - The Painter
func New(d dispatch.Dispatcher, cfg Config) *Painter {
	if cfg.Chunks < 1 {
		cfg.Chunks = 1
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Painter{d: d, cfg: cfg, log: cfg.Logger}
}

// Run submits every pixel and returns once the dispatcher has drained. The
// sequence is split into Chunks contiguous, roughly equal slices (the last
// absorbs the remainder); each slice is submitted in order by its own
// goroutine, so cross-chunk paint order is unspecified. Per-pixel send
// failures never abort the run; their count is logged and available via the
// dispatcher's Failures.
//
// Parameters:
//   - ctx: Cancels submission; pixels not yet submitted are skipped
//   - pixels: The finite, pre-resized pixel sequence
//
// Returns:
//   - ctx.Err() if submission was cancelled, or the dispatcher's Close error
func (p *Painter) Run(ctx context.Context, pixels []Pixel) error {
	start := time.Now()
	p.log.Info("painting",
		logger.Field{Key: "pixels", Value: len(pixels)},
		logger.Field{Key: "chunks", Value: p.cfg.Chunks})

	g, ctx := errgroup.WithContext(ctx)
	for _, chunk := range split(pixels, p.cfg.Chunks) {
		chunk := chunk
		g.Go(func() error {
			for _, px := range chunk {
				if err := p.d.Submit(ctx, protocol.SetPx(px.At, px.Color)); err != nil {
					return err
				}
			}

			return nil
		})
	}

	runErr := g.Wait()
	if err := p.d.Close(); err != nil && runErr == nil {
		runErr = err
	}

	p.log.Info("done",
		logger.Field{Key: "elapsed", Value: time.Since(start)},
		logger.Field{Key: "failed", Value: p.d.Failures()})

	return runErr
}

// split cuts pixels into at most n contiguous slices of roughly equal
// length; the last slice absorbs any remainder. Fewer than n slices are
// returned when there are fewer than n pixels.
func split(pixels []Pixel, n int) [][]Pixel {
	if len(pixels) == 0 {
		return nil
	}

	size := len(pixels) / n
	if size == 0 {
		size = 1
	}

	var chunks [][]Pixel
	for start := 0; start < len(pixels); start += size {
		end := start + size
		if len(chunks) == n-1 || end > len(pixels) {
			end = len(pixels)
		}

		chunks = append(chunks, pixels[start:end])
		if end == len(pixels) {
			break
		}
	}

	return chunks
}
