// Command flutserverd runs a minimal in-memory Pixelflut server, mainly for
// developing and benchmarking the client against a local canvas.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/cyberinferno/pixelflood/flutserver"
	"github.com/cyberinferno/pixelflood/logger"
)

func main() {
	var (
		listen  = pflag.StringP("listen", "l", ":1234", "address to listen on")
		width   = pflag.Uint32("width", 800, "canvas width in pixels")
		height  = pflag.Uint32("height", 600, "canvas height in pixels")
		verbose = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger("flutserverd", level)

	srv := flutserver.New(flutserver.NewCanvas(*width, *height), log)
	if err := srv.Start(*listen); err != nil {
		log.Error("failed to start", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	srv.Stop()
}
