// Package main runs the mock Dread debug server: a stand-in for the game
// that speaks the real wire protocol and executes snippets on an embedded
// Lua state. Useful for exercising the console without a running game.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dread-remote/console/internal/logging"
	"github.com/dread-remote/console/internal/mockserver"
	"github.com/dread-remote/console/internal/protocol"
)

func main() {
	var (
		addr       = flag.String("addr", fmt.Sprintf(":%d", protocol.DefaultPort), "Address to listen on")
		version    = flag.Int("api-version", 3, "API version reported to clients")
		bufferSize = flag.Int("buffer-size", 4096, "Buffer size reported to clients")
		bootstrap  = flag.Bool("bootstrap", true, "Bootstrap flag reported to clients")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if os.Getenv("CONSOLE_DEBUG") == "true" {
		logConfig.Level = logging.DebugLevel
	}
	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logger := logging.GetGlobalLogger()

	server := mockserver.New(mockserver.Config{
		Version:    *version,
		BufferSize: *bufferSize,
		Bootstrap:  *bootstrap,
	})
	if err := server.Start(*addr); err != nil {
		logger.Error("Failed to start mock server", "error", err.Error())
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down mock server")
	if err := server.Close(); err != nil {
		logger.Warn("Error during shutdown", "error", err.Error())
	}
}
