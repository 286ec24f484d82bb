// Command pixelflood paints an image onto a Pixelflut server's canvas as
// fast as the server will take it, stretching the image to the full canvas
// and fanning the pixel stream out over concurrent connections.
package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/cyberinferno/pixelflood/dispatch"
	"github.com/cyberinferno/pixelflood/imagepipe"
	"github.com/cyberinferno/pixelflood/logger"
	"github.com/cyberinferno/pixelflood/painter"
	"github.com/cyberinferno/pixelflood/protocol"
	"github.com/cyberinferno/pixelflood/sizecache"
)

func main() {
	var (
		server     = pflag.StringP("server", "s", "", "pixelflut server to connect to (host:port)")
		imagePath  = pflag.String("image", "", "image to stretch and paint onto the entire canvas")
		conns      = pflag.IntP("connections", "c", 4, "simultaneous connections used to paint pixels (pool strategy)")
		chunks     = pflag.IntP("chunks", "k", 4, "evenly-sized chunks to split the image into and paint concurrently")
		strategy   = pflag.String("strategy", "pool", "dispatch strategy: pool (one connection per worker) or bounded (one shared connection)")
		inflight   = pflag.Int64("inflight", 256, "in-flight send cap (bounded strategy)")
		crunch     = pflag.Bool("crunch", false, "make the painted image extremely low quality")
		crunchSize = pflag.Int("crunch-size", 16, "size to resize images down to when crunching")
		redisAddr  = pflag.String("size-cache-redis", "", "redis address for sharing the canvas-size cache across processes (optional)")
		sizeTTL    = pflag.Duration("size-ttl", 5*time.Minute, "how long a cached canvas size stays valid")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger("pixelflood", level)

	if *server == "" || *imagePath == "" {
		log.Error("both --server and --image are required")
		pflag.Usage()
		os.Exit(2)
	}

	img, err := imagepipe.Load(*imagePath)
	if err != nil {
		log.Error("failed to load image", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	d, err := buildDispatcher(*strategy, *server, *conns, *inflight, log)
	if err != nil {
		log.Error("failed to connect", logger.Field{Key: "server", Value: *server}, logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	ctx := context.Background()

	canvasSize, err := lookupCanvasSize(ctx, d, *server, *redisAddr, *sizeTTL)
	if err != nil {
		log.Error("failed to query canvas size", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	log.Info("canvas",
		logger.Field{Key: "width", Value: canvasSize.X},
		logger.Field{Key: "height", Value: canvasSize.Y})

	opts := imagepipe.Options{Crunch: *crunch, CrunchSize: *crunchSize}
	pixels := imagepipe.Flatten(imagepipe.Stretch(img, canvasSize, opts))

	p := painter.New(d, painter.Config{Chunks: *chunks, Logger: log})
	if err := p.Run(ctx, pixels); err != nil {
		log.Error("run failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	if n := d.Failures(); n > 0 {
		log.Warn("completed with failed pixels", logger.Field{Key: "failed", Value: n})
	}
}

// buildDispatcher constructs the requested strategy, connected and running.
func buildDispatcher(strategy, server string, conns int, inflight int64, log logger.Logger) (dispatch.Dispatcher, error) {
	switch strategy {
	case "bounded":
		cfg := dispatch.DefaultBoundedConfig(server)
		cfg.MaxInFlight = inflight
		cfg.Logger = log
		return dispatch.NewBounded(cfg)
	default:
		cfg := dispatch.DefaultPoolConfig(server)
		cfg.Workers = conns
		cfg.Logger = log
		return dispatch.NewPool(cfg)
	}
}

// lookupCanvasSize resolves the canvas size through the size cache, querying
// the server on a miss. With --size-cache-redis the entry is shared with
// other pixelflood processes flooding the same server.
func lookupCanvasSize(ctx context.Context, d dispatch.Dispatcher, server, redisAddr string, ttl time.Duration) (protocol.Vec2, error) {
	var cache sizecache.Cache = sizecache.NewMemory(time.Minute)
	if redisAddr != "" {
		cache = sizecache.NewRedis(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}

	return cache.GetOrFetch(ctx, server, ttl, func(context.Context) (protocol.Vec2, error) {
		return d.CanvasSize()
	})
}
